package repository

import (
	"testing"
	"time"

	"signage-server/internal/model"
)

func TestActivityListFilters(t *testing.T) {
	repo := NewActivityRepository(newTestDB(t))

	entries := []model.ActivityLog{
		{Category: model.ActivityConnection, DeviceID: strPtr("D1"), Message: "registered", CreatedAt: testNow},
		{Category: model.ActivityMaintenance, DeviceID: strPtr("D1"), Message: "fixed", CreatedAt: testNow.Add(time.Minute)},
		{Category: model.ActivityConnection, DeviceID: strPtr("D2"), Message: "registered", CreatedAt: testNow.Add(2 * time.Minute)},
	}
	for i := range entries {
		if err := repo.Create(bg, &entries[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.List(bg, ActivityFilter{DeviceID: "D1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Message != "fixed" {
		t.Errorf("device filter = %+v", got)
	}

	got, err = repo.List(bg, ActivityFilter{Category: model.ActivityConnection, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || *got[0].DeviceID != "D2" {
		t.Errorf("category filter = %+v", got)
	}
}
