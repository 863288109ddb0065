package valetudo

import (
	"encoding/json"
)

// Attribute class discriminators used by the Valetudo state endpoint.
const (
	classBattery     = "BatteryStateAttribute"
	classInformation = "RobotInformationAttribute"
	classStatus      = "StatusStateAttribute"
)

// State is the robot state document returned by /api/v2/robot/state.
// The attribute list is heterogeneous; each entry carries a __class
// discriminator.
type State struct {
	Attributes []Attribute `json:"attributes"`
}

// Attribute is one entry of the state attribute list, decoded into a
// known variant when the class is recognized. Unknown classes keep
// their raw JSON so nothing is silently lost.
type Attribute struct {
	Class string

	Battery     *BatteryState
	Information *RobotInformation
	Status      *StatusState

	Raw json.RawMessage
}

// BatteryState reports charge level and charging flag.
type BatteryState struct {
	Level int    `json:"level"`
	Flag  string `json:"flag"`
}

// RobotInformation identifies the vacuum hardware.
type RobotInformation struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}

// StatusState is the robot's current activity (docked, cleaning, ...).
type StatusState struct {
	Value string `json:"value"`
	Flag  string `json:"flag"`
}

// UnmarshalJSON decodes the discriminator first, then the matching
// variant. Unknown classes fall through to Raw.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var tag struct {
		Class string `json:"__class"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	a.Class = tag.Class

	switch tag.Class {
	case classBattery:
		a.Battery = &BatteryState{}
		return json.Unmarshal(data, a.Battery)
	case classInformation:
		a.Information = &RobotInformation{}
		return json.Unmarshal(data, a.Information)
	case classStatus:
		a.Status = &StatusState{}
		return json.Unmarshal(data, a.Status)
	default:
		a.Raw = append(a.Raw[:0], data...)
		return nil
	}
}

// BatteryLevel returns the battery charge if the state document
// contains one.
func (s *State) BatteryLevel() (int, bool) {
	for _, attr := range s.Attributes {
		if attr.Battery != nil {
			return attr.Battery.Level, true
		}
	}
	return 0, false
}

// Information returns the robot information attribute, if present.
func (s *State) InformationAttribute() (RobotInformation, bool) {
	for _, attr := range s.Attributes {
		if attr.Information != nil {
			return *attr.Information, true
		}
	}
	return RobotInformation{}, false
}

// StatusValue returns the activity string, if present.
func (s *State) StatusValue() (string, bool) {
	for _, attr := range s.Attributes {
		if attr.Status != nil {
			return attr.Status.Value, true
		}
	}
	return "", false
}
