package engine

import (
	"fmt"
	"log"
)

// wireEventHandlers journals session activity into the local store:
// doses, scans, and notices all land in their history tables here so the
// rest of the system (web history views, outbound reports) reads one place.
func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		e.handleMaterialDosed(evt.Payload.(MaterialDosedEvent))
	}, EventMaterialDosed)

	e.Events.SubscribeTypes(func(evt Event) {
		matched := evt.Payload.(ScanMatchedEvent)
		var materialID *int64
		expected := ""
		if matched.Material != nil {
			id := matched.Material.MaterialID
			materialID = &id
			expected = matched.Material.Barcode
		}
		if _, err := e.db.InsertScan(matched.Barcode, expected, true, materialID); err != nil {
			log.Printf("journal matched scan: %v", err)
		}
	}, EventScanMatched)

	e.Events.SubscribeTypes(func(evt Event) {
		mismatch := evt.Payload.(ScanMismatchEvent)
		if _, err := e.db.InsertScan(mismatch.Scanned, mismatch.Expected, false, nil); err != nil {
			log.Printf("journal mismatched scan: %v", err)
		}
	}, EventScanMismatch)

	e.Events.SubscribeTypes(func(evt Event) {
		notice := evt.Payload.(NoticeEvent)
		if _, err := e.db.InsertNotice(notice.Level, notice.Message); err != nil {
			log.Printf("journal notice: %v", err)
		}
	}, EventNotice)

	e.Events.SubscribeTypes(func(evt Event) {
		complete := evt.Payload.(BatchCompleteEvent)
		msg := "batch complete"
		if complete.Material != nil {
			msg = fmt.Sprintf("batch complete: %s", complete.Material.RecipeName)
		}
		if _, err := e.db.InsertNotice("info", msg); err != nil {
			log.Printf("journal batch notice: %v", err)
		}
	}, EventBatchComplete)
}

func (e *Engine) handleMaterialDosed(dosed MaterialDosedEvent) {
	if dosed.Data == nil {
		return
	}
	e.debugFn("material dosed: id=%d actual=%.3f margin=%.1fg reset_done=%v remaining=%d",
		dosed.Data.RecipeMaterialID, dosed.Data.Actual, dosed.Data.Margin,
		dosed.ResetDone, dosed.TotalRemaining)

	rec := doseRecordFromEvent(dosed)
	if _, err := e.db.InsertDose(rec); err != nil {
		log.Printf("journal dose: %v", err)
	}
}
