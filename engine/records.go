package engine

import "doseedge/store"

// doseRecordFromEvent flattens a dosed event into a journal row. The recipe
// context comes from the session's material snapshot; the measured values
// from the backend's dose record.
func doseRecordFromEvent(dosed MaterialDosedEvent) store.DoseRecord {
	rec := store.DoseRecord{
		RecipeMaterialID: dosed.Data.RecipeMaterialID,
		MaterialID:       dosed.Data.MaterialID,
		MaterialName:     dosed.Data.MaterialName,
		SetPoint:         dosed.Data.SetPoint,
		Actual:           dosed.Data.Actual,
		MarginG:          dosed.Data.Margin,
		BatchComplete:    dosed.ResetDone,
	}
	if dosed.Material != nil {
		rec.RecipeID = dosed.Material.RecipeID
		rec.RecipeName = dosed.Material.RecipeName
	}
	return rec
}
