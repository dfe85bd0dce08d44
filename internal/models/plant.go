package models

// KCSTAGE IS ONE POINT OF A PLANT'S STAGED CROP-COEFFICIENT CURVE
type KcStage struct {
	DaysAfterPlanting int     `json:"daysAfterPlanting"`
	Kc                float64 `json:"kc"`
}

// PLANTRECORD IS A ROM (BUILT-IN) PLANT CATALOG ENTRY CONSUMED BY THE FAO-56 SCHEDULER (C9)
type PlantRecord struct {
	Index           int           `json:"index"`
	Category        PlantCategory `json:"category"`
	Name            string        `json:"name"`
	KcStages        []KcStage     `json:"kcStages"` // MUST BE SORTED ASCENDING BY DaysAfterPlanting
	SpacingM2       float64       `json:"spacingM2"`       // DEFAULT PLANT FOOTPRINT, m²/plant
	EcoDeficitFrac  float64       `json:"ecoDeficitFrac"`  // STAGE-INDEPENDENT DEFAULT, SEE Kc STAGING NOTE
}

// KcAt RETURNS THE CROP COEFFICIENT FOR A GIVEN DAYS-AFTER-PLANTING, HOLDING THE LAST KNOWN
// STAGE VALUE BEFORE THE FIRST DATAPOINT AND AFTER THE LAST (NO EXTRAPOLATION PAST THE CURVE).
func (p *PlantRecord) KcAt(daysAfterPlanting int) float64 {
	if len(p.KcStages) == 0 {
		return 1.0
	}
	kc := p.KcStages[0].Kc
	for _, stage := range p.KcStages {
		if stage.DaysAfterPlanting > daysAfterPlanting {
			break
		}
		kc = stage.Kc
	}
	return kc
}

// FOOTPRINTM2 RETURNS THE DEFAULT PER-PLANT FOOTPRINT, FALLING BACK TO A GENERIC DENSITY
func (p *PlantRecord) FootprintM2() float64 {
	if p.SpacingM2 > 0 {
		return p.SpacingM2
	}
	return 0.25 // DEFAULT DENSITY WHEN THE CATALOG ENTRY DOES NOT SPECIFY SPACING
}

// BUILT-IN ROM PLANT CATALOG, INDEXED BY PlantRecord.Index
var romPlantCatalog = []PlantRecord{
	{
		Index: 0, Category: PlantVegetable, Name: "Tomato",
		KcStages: []KcStage{{0, 0.6}, {30, 0.85}, {60, 1.15}, {90, 0.9}},
		SpacingM2: 0.36, EcoDeficitFrac: 0.15,
	},
	{
		Index: 1, Category: PlantVegetable, Name: "Lettuce",
		KcStages: []KcStage{{0, 0.7}, {20, 1.0}, {45, 0.95}},
		SpacingM2: 0.09, EcoDeficitFrac: 0.10,
	},
	{
		Index: 2, Category: PlantFruit, Name: "Strawberry",
		KcStages: []KcStage{{0, 0.4}, {30, 0.85}, {75, 0.75}},
		SpacingM2: 0.09, EcoDeficitFrac: 0.15,
	},
	{
		Index: 3, Category: PlantLawn, Name: "Cool-season turf",
		KcStages: []KcStage{{0, 0.85}},
		SpacingM2: 0, EcoDeficitFrac: 0.20,
	},
	{
		Index: 4, Category: PlantTree, Name: "Citrus",
		KcStages: []KcStage{{0, 0.55}, {180, 0.65}, {365, 0.7}},
		SpacingM2: 9.0, EcoDeficitFrac: 0.15,
	},
	{
		Index: 5, Category: PlantFlower, Name: "Rose",
		KcStages: []KcStage{{0, 0.5}, {40, 0.7}, {90, 0.65}},
		SpacingM2: 0.5, EcoDeficitFrac: 0.15,
	},
}

// LOOKUPPLANT RESOLVES A ROM PLANT BY INDEX
func LookupPlant(index int) (*PlantRecord, bool) {
	for i := range romPlantCatalog {
		if romPlantCatalog[i].Index == index {
			return &romPlantCatalog[i], true
		}
	}
	return nil, false
}

// IRRIGATIONEFFICIENCY RETURNS THE FRACTIONAL DELIVERY EFFICIENCY FOR A METHOD (§4.9 STEP 6)
func IrrigationEfficiency(method IrrigationMethod) float64 {
	switch method {
	case MethodDrip:
		return 0.9
	case MethodMicroSpray:
		return 0.85
	case MethodSprinkler:
		return 0.75
	case MethodFlood:
		return 0.6
	default:
		return 0.8
	}
}

// SOILRECORD IS A MINIMAL SOIL CATALOG ENTRY; PRESENCE (SOIL_INDEX >= 0) GATES AUTO-VALIDITY
type SoilRecord struct {
	Index              int     `json:"index"`
	Name               string  `json:"name"`
	InfiltrationMMPerH float64 `json:"infiltrationMmPerH"`
}

var romSoilCatalog = []SoilRecord{
	{Index: 0, Name: "Sandy", InfiltrationMMPerH: 30},
	{Index: 1, Name: "Loam", InfiltrationMMPerH: 15},
	{Index: 2, Name: "Clay", InfiltrationMMPerH: 5},
}

// LOOKUPSOIL RESOLVES A ROM SOIL ENTRY BY INDEX
func LookupSoil(index int) (*SoilRecord, bool) {
	for i := range romSoilCatalog {
		if romSoilCatalog[i].Index == index {
			return &romSoilCatalog[i], true
		}
	}
	return nil, false
}
