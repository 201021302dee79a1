package sales

import (
	"encoding/json"
	"sort"
)

// These builders return JSON scheme definitions for the common sales
// schemes. They construct JSON directly to avoid an import cycle with the
// factory package.
//
//	jsonStr := sales.TwoParameterSchemeJSON("sm", "Sales manager", 3_000_000, 5)
//	scheme, err := factory.NewSchemeFactory(nil).ParseScheme(jsonStr)

func fixedComponent(amount float64) map[string]interface{} {
	return map[string]interface{}{
		"id":               "fixed",
		"name":             "Fixed salary",
		"component_type":   "fixed_salary",
		"calculation_type": "fixed",
		"base_amount":      amount,
		"order":            1,
	}
}

func encode(sj map[string]interface{}) string {
	b, _ := json.MarshalIndent(sj, "", "  ")
	return string(b)
}

// TwoParameterSchemeJSON returns fix + percent of revenue.
func TwoParameterSchemeJSON(id, name string, fixed, revenuePercent float64) string {
	return encode(map[string]interface{}{
		"id":           id,
		"name":         name,
		"kind":         "two_parameter",
		"bonus_period": "monthly",
		"components": []map[string]interface{}{
			fixedComponent(fixed),
			{
				"id":               "revenue-bonus",
				"name":             "Revenue bonus",
				"component_type":   "bonus",
				"calculation_type": "percentage",
				"percentage_of":    "revenue",
				"percentage_value": revenuePercent,
				"order":            2,
			},
		},
	})
}

// TieredBonusSchemeJSON returns fix + a bonus on the sales plan KPI:
// 80-99% pays 1.0, 100-119% pays 1.2, 120% and up pays 1.5.
func TieredBonusSchemeJSON(id, name string, fixed, bonusBase float64) string {
	return encode(map[string]interface{}{
		"id":           id,
		"name":         name,
		"kind":         "two_parameter",
		"bonus_period": "monthly",
		"components": []map[string]interface{}{
			fixedComponent(fixed),
			{
				"id":               "plan-bonus",
				"name":             "Sales plan bonus",
				"component_type":   "bonus",
				"calculation_type": "scale",
				"base_amount":      bonusBase,
				"kpi_metric":       MetricSalesPlan,
				"scale_table": []map[string]interface{}{
					{"min": 80, "max": 99, "coefficient": 1.0, "name": "80-99%"},
					{"min": 100, "max": 119, "coefficient": 1.2, "name": "100-119%"},
					{"min": 120, "max": nil, "coefficient": 1.5, "name": "120%+"},
				},
				"order": 2,
			},
		},
	})
}

// ThreeParameterSchemeJSON returns fix + soft salary over weighted
// responsibilities + a KPI bonus with a generated progressive scale.
func ThreeParameterSchemeJSON(id, name string, fixed, soft, bonusBase float64, responsibilities map[string]float64) string {
	reqs := make([]map[string]interface{}, 0, len(responsibilities))
	for _, key := range sortedKeys(responsibilities) {
		reqs = append(reqs, map[string]interface{}{"id": key, "name": key, "weight": responsibilities[key]})
	}
	return encode(map[string]interface{}{
		"id":           id,
		"name":         name,
		"kind":         "three_parameter",
		"bonus_period": "monthly",
		"components": []map[string]interface{}{
			fixedComponent(fixed),
			{
				"id":                    "soft",
				"name":                  "Soft salary",
				"component_type":        "soft_salary",
				"calculation_type":      "fixed",
				"base_amount":           soft,
				"function_requirements": reqs,
				"order":                 2,
			},
			{
				"id":               "kpi-bonus",
				"name":             "KPI bonus",
				"component_type":   "bonus",
				"calculation_type": "scale",
				"base_amount":      bonusBase,
				"generate_scale": map[string]interface{}{
					"base_percent": 80,
					"max_percent":  120,
					"step":         10,
					"progressive":  true,
				},
				"order": 3,
			},
		},
	})
}

// PlanPenaltySchemeJSON returns fix + revenue bonus + a penalty applied
// only while plan completion stays under minCompletion percent.
func PlanPenaltySchemeJSON(id, name string, fixed, revenuePercent, penalty, minCompletion float64) string {
	return encode(map[string]interface{}{
		"id":           id,
		"name":         name,
		"kind":         "two_parameter",
		"bonus_period": "monthly",
		"components": []map[string]interface{}{
			fixedComponent(fixed),
			{
				"id":               "revenue-bonus",
				"component_type":   "bonus",
				"calculation_type": "percentage",
				"percentage_of":    "revenue",
				"percentage_value": revenuePercent,
				"order":            2,
			},
			{
				"id":               "plan-penalty",
				"name":             "Plan not met",
				"component_type":   "penalty",
				"calculation_type": "fixed",
				"base_amount":      penalty,
				"trigger":          map[string]interface{}{"metric": "plan_completion", "threshold": minCompletion},
				"order":            3,
			},
		},
	})
}

// KeyTasksSchemeJSON returns fix + the key task map bonus. The bonus reads
// key_task_bonus, which the context builder fills from the employee's map.
func KeyTasksSchemeJSON(id, name string, fixed float64) string {
	return encode(map[string]interface{}{
		"id":           id,
		"name":         name,
		"kind":         "key_tasks",
		"bonus_period": "monthly",
		"components": []map[string]interface{}{
			fixedComponent(fixed),
			{
				"id":               "key-tasks",
				"name":             "Key task bonus",
				"component_type":   "bonus",
				"calculation_type": "percentage",
				"percentage_of":    "key_task_bonus",
				"percentage_value": 100,
				"order":            2,
			},
		},
	})
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
