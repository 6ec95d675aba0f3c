package config

import (
	"testing"

	"github.com/thatsimonsguy/irrigation-controller/db"
)

func validSeed() db.SeedSpec {
	return db.SeedSpec{
		Rooms: []db.SeedRoom{
			{
				ID: "flower",
				Pumps: []db.SeedPump{
					{
						ID: "pump-a",
						Zones: []db.SeedZone{
							{ID: "zone-1"},
							{ID: "zone-2"},
						},
					},
				},
				Events: []db.SeedWaterEvt{
					{ID: "evt-p1", Kind: "p1", RunSeconds: 60, DelayMinutes: 30, ZoneIDs: []string{"zone-1"}},
					{ID: "evt-p2", Kind: "p2", RunSeconds: 60, TimeOfDay: "13:30", ZoneIDs: []string{"zone-2"}},
				},
			},
		},
	}
}

func TestValidateSeed_Valid(t *testing.T) {
	spec := validSeed()
	validateSeed(&spec) // should not panic
}

func TestValidateSeed_DanglingZoneReference(t *testing.T) {
	spec := validSeed()
	spec.Rooms[0].Events[0].ZoneIDs = []string{"no-such-zone"}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to dangling zone reference, but got none")
		}
	}()
	validateSeed(&spec)
}

func TestValidateSeed_BadTimeOfDay(t *testing.T) {
	spec := validSeed()
	spec.Rooms[0].Events[1].TimeOfDay = "24:00"

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to invalid time_of_day, but got none")
		}
	}()
	validateSeed(&spec)
}

func TestValidateSeed_DuplicateZoneID(t *testing.T) {
	spec := validSeed()
	spec.Rooms[0].Pumps[0].Zones = append(spec.Rooms[0].Pumps[0].Zones, db.SeedZone{ID: "zone-1"})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to duplicate zone id, but got none")
		}
	}()
	validateSeed(&spec)
}
