package valetudo

import (
	"encoding/json"
	"testing"
)

const stateDoc = `{
	"attributes": [
		{"__class": "BatteryStateAttribute", "level": 42, "flag": "charging"},
		{"__class": "RobotInformationAttribute", "manufacturer": "Roborock", "model": "S5"},
		{"__class": "StatusStateAttribute", "value": "cleaning", "flag": "none"},
		{"__class": "AttachmentStateAttribute", "type": "watertank", "attached": true}
	]
}`

func TestState_Unmarshal(t *testing.T) {
	var state State
	if err := json.Unmarshal([]byte(stateDoc), &state); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(state.Attributes) != 4 {
		t.Fatalf("got %d attributes, want 4", len(state.Attributes))
	}

	level, ok := state.BatteryLevel()
	if !ok || level != 42 {
		t.Errorf("BatteryLevel = (%d, %v), want (42, true)", level, ok)
	}

	info, ok := state.InformationAttribute()
	if !ok || info.Manufacturer != "Roborock" || info.Model != "S5" {
		t.Errorf("InformationAttribute = (%+v, %v)", info, ok)
	}

	status, ok := state.StatusValue()
	if !ok || status != "cleaning" {
		t.Errorf("StatusValue = (%q, %v), want (cleaning, true)", status, ok)
	}
}

func TestState_UnknownAttributePreserved(t *testing.T) {
	var state State
	if err := json.Unmarshal([]byte(stateDoc), &state); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}

	var unknown *Attribute
	for i := range state.Attributes {
		if state.Attributes[i].Class == "AttachmentStateAttribute" {
			unknown = &state.Attributes[i]
		}
	}
	if unknown == nil {
		t.Fatal("unknown attribute dropped")
	}
	if unknown.Battery != nil || unknown.Information != nil || unknown.Status != nil {
		t.Error("unknown attribute decoded into a known variant")
	}
	if len(unknown.Raw) == 0 {
		t.Error("unknown attribute lost its raw JSON")
	}
}

func TestState_MissingAttributes(t *testing.T) {
	var state State
	if err := json.Unmarshal([]byte(`{"attributes":[]}`), &state); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if _, ok := state.BatteryLevel(); ok {
		t.Error("BatteryLevel ok for empty attribute list")
	}
	if _, ok := state.StatusValue(); ok {
		t.Error("StatusValue ok for empty attribute list")
	}
}
