// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultPointCost is the cost of a node whose dataset entry omits pointCost.
const DefaultPointCost = 1

// NodeKind classifies a node in the skill tree.
type NodeKind string

const (
	// KindStart is a class starting point.
	KindStart NodeKind = "start"

	// KindSmall is a minor passive.
	KindSmall NodeKind = "small"

	// KindNotable is a named, stronger passive.
	KindNotable NodeKind = "notable"

	// KindKeystone is a build-defining passive.
	KindKeystone NodeKind = "keystone"

	// KindMastery is a cluster mastery node.
	KindMastery NodeKind = "mastery"

	// KindAscendancy belongs to an ascendancy sub-tree.
	KindAscendancy NodeKind = "ascendancy"
)

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case KindStart, KindSmall, KindNotable, KindKeystone, KindMastery, KindAscendancy:
		return true
	default:
		return false
	}
}

// StatType is the category a StatModifier contributes to during aggregation.
type StatType string

const (
	StatStrength       StatType = "strength"
	StatDexterity      StatType = "dexterity"
	StatIntelligence   StatType = "intelligence"
	StatLife           StatType = "life"
	StatMana           StatType = "mana"
	StatEnergyShield   StatType = "energyShield"
	StatArmour         StatType = "armour"
	StatEvasion        StatType = "evasion"
	StatDamage         StatType = "damage"
	StatAttackSpeed    StatType = "attackSpeed"
	StatCastSpeed      StatType = "castSpeed"
	StatCritChance     StatType = "critChance"
	StatCritMultiplier StatType = "critMultiplier"
	StatResistance     StatType = "resistance"
	StatOther          StatType = "other"
)

// StatValue is a modifier value that is either numeric or free text.
//
// The dataset format allows both `"value": 10` and `"value": "Cannot Evade"`.
// Aggregation only sums numeric values.
type StatValue struct {
	Number float64
	Text   string
	IsText bool
}

// Num returns a numeric StatValue.
func Num(v float64) StatValue { return StatValue{Number: v} }

// Text returns a textual StatValue.
func Text(s string) StatValue { return StatValue{Text: s, IsText: true} }

// String renders the value for display.
func (v StatValue) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// MarshalJSON encodes the value as a JSON number or string.
func (v StatValue) MarshalJSON() ([]byte, error) {
	if v.IsText {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Number)
}

// UnmarshalJSON accepts a JSON number or string.
func (v *StatValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = StatValue{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("stat value must be number or string: %w", err)
	}
	*v = Num(f)
	return nil
}

// StatModifier is a single typed bonus attached to a node.
//
// Modifiers are produced once at load time and never mutated afterwards.
type StatModifier struct {
	Type      StatType  `json:"type" validate:"required"`
	Name      string    `json:"name"`
	Value     StatValue `json:"value"`
	IsPercent bool      `json:"isPercent,omitempty"`
}

// Node is a single allocatable point in the skill graph.
type Node struct {
	ID               string         `json:"id" validate:"required"`
	Name             string         `json:"name" validate:"required"`
	Description      string         `json:"description,omitempty"`
	X                float64        `json:"x"`
	Y                float64        `json:"y"`
	Kind             NodeKind       `json:"kind" validate:"required,oneof=start small notable keystone mastery ascendancy"`
	Stats            []StatModifier `json:"stats,omitempty" validate:"dive"`
	ConnectedTo      []string       `json:"connectedTo,omitempty"`
	ClassRequirement string         `json:"classRequirement,omitempty"`
	PointCost        int            `json:"pointCost,omitempty"`
	IsRoot           bool           `json:"isRoot,omitempty"`
}

// Connection is an unordered edge between two nodes.
type Connection struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// key returns a canonical form so (a,b) and (b,a) collide.
func (c Connection) key() [2]string {
	if c.From <= c.To {
		return [2]string{c.From, c.To}
	}
	return [2]string{c.To, c.From}
}

// ClassInfo describes a playable class and its starting node.
type ClassInfo struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	StartNodeID string `json:"startNodeId"`
	Color       string `json:"color,omitempty"`
}

// Bounds is the axis-aligned extent of the tree.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Dataset is the raw, decoded skill tree resource.
type Dataset struct {
	Version     string       `json:"version"`
	Classes     []ClassInfo  `json:"classes" validate:"dive"`
	Nodes       []Node       `json:"nodes" validate:"required,min=1,dive"`
	Connections []Connection `json:"connections" validate:"dive"`
	Bounds      *Bounds      `json:"bounds,omitempty"`
}

// HasConnections reports whether the dataset declares any edge, either in the
// connection list or in per-node connectedTo lists.
func (d Dataset) HasConnections() bool {
	if len(d.Connections) > 0 {
		return true
	}
	for _, n := range d.Nodes {
		if len(n.ConnectedTo) > 0 {
			return true
		}
	}
	return false
}

// Decode parses a JSON dataset. It does not validate; see Load.
func Decode(data []byte) (Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return Dataset{}, &LoadError{Reason: "decode", Err: err}
	}
	return ds, nil
}
