package wardgraph

// Default graph configuration, carried over from the hospital's production
// tuning. Priority weights are raw clinical preference mass; they are
// normalized per diagnosis at load time. Wards with capacity 0 (ER, MICU,
// CCU) are not part of the general transfer pool and are only reachable
// through live bed data.
func DefaultConfig() Config {
	return Config{
		BaseFloor: 1,
		Wards: []WardInfo{
			{Code: "ER", Name: "Emergency Center", Capacity: 0, Floor: 1},
			{Code: "MICU", Name: "Medical ICU", Capacity: 0, Floor: 4},
			{Code: "SICU", Name: "Surgical ICU", Capacity: 30, Floor: 4},
			{Code: "CCU", Name: "Cardiovascular ICU", Capacity: 0, Floor: 4},
			{Code: "CDU", Name: "Cardiovascular Day Unit", Capacity: 27, Floor: 4},
			{Code: "SCU", Name: "Stroke Care Unit", Capacity: 4, Floor: 4},
			{Code: "EICU", Name: "Emergency ICU", Capacity: 13, Floor: 7},
			{Code: "W53", Name: "Ward 53", Capacity: 31, Floor: 5},
			{Code: "W54", Name: "Ward 54", Capacity: 32, Floor: 5},
			{Code: "W69", Name: "Ward 69", Capacity: 40, Floor: 6},
			{Code: "W71", Name: "Ward 71", Capacity: 34, Floor: 7},
			{Code: "W72", Name: "Ward 72", Capacity: 45, Floor: 7},
			{Code: "W75", Name: "Ward 75", Capacity: 32, Floor: 7},
			{Code: "W76", Name: "Ward 76", Capacity: 33, Floor: 7},
			{Code: "W78", Name: "Ward 78", Capacity: 29, Floor: 7},
			{Code: "W83", Name: "Ward 83", Capacity: 33, Floor: 8},
		},
		Edges: map[Diagnosis][]Ward{
			DiagHemorrhage: {"W71", "SICU", "ER", "W72", "W76"},
			DiagArrest:     {"CCU", "W83", "MICU", "ER", "SICU"},
			DiagAortic:     {"W83", "SICU", "W72", "W54", "ER"},
			DiagAngina:     {"W69", "CDU", "CCU", "W54", "SICU"},
			DiagInfarction: {"W69", "CCU", "SICU", "W78", "W54", "EICU"},
			DiagStroke:     {"W75", "SCU", "W76", "EICU", "ER", "SICU"},
		},
		PriorityWeights: map[Diagnosis]map[Ward]float64{
			DiagArrest: {
				"CCU": 0.257, "W83": 0.242, "MICU": 0.217, "ER": 0.163, "SICU": 0.121,
			},
			DiagHemorrhage: {
				"W71": 0.3761, "SICU": 0.2778, "ER": 0.0655, "W72": 0.0621, "W76": 0.0586,
			},
			DiagAortic: {
				"W83": 0.2583, "SICU": 0.2231, "W72": 0.2024, "W54": 0.1954, "ER": 0.1208,
			},
			DiagAngina: {
				"W69": 0.4504, "CDU": 0.2964, "CCU": 0.1768, "W54": 0.0656, "SICU": 0.0410,
			},
			DiagInfarction: {
				"W69": 0.3459, "CCU": 0.2238, "SICU": 0.1491, "W78": 0.0745, "W54": 0.0676, "EICU": 0.0451,
			},
			DiagStroke: {
				"W75": 0.3317, "SCU": 0.2351, "W76": 0.1837, "EICU": 0.1776, "ER": 0.0662, "SICU": 0.0662,
			},
		},
		TransferRates: map[Diagnosis]float64{
			DiagHemorrhage: 0.80,
			DiagArrest:     0.69,
			DiagAortic:     0.89,
			DiagAngina:     0.26,
			DiagInfarction: 0.62,
			DiagStroke:     0.47,
		},
	}
}
