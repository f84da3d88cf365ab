// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package treebuild

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

// statLine matches "+10 to Strength", "12% increased Attack Speed",
// "-5% reduced Mana Cost" and "30 Armour".
var statLine = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)(%)?\s+(?:(to|increased|more|reduced|less)\s+)?(.+)$`)

// statKeywords is checked in order; longer phrases come before the words
// they contain.
var statKeywords = []struct {
	phrase string
	typ    graph.StatType
}{
	{"energy shield", graph.StatEnergyShield},
	{"attack speed", graph.StatAttackSpeed},
	{"cast speed", graph.StatCastSpeed},
	{"critical strike multiplier", graph.StatCritMultiplier},
	{"critical multiplier", graph.StatCritMultiplier},
	{"critical strike chance", graph.StatCritChance},
	{"critical chance", graph.StatCritChance},
	{"resistance", graph.StatResistance},
	{"strength", graph.StatStrength},
	{"dexterity", graph.StatDexterity},
	{"intelligence", graph.StatIntelligence},
	{"life", graph.StatLife},
	{"mana", graph.StatMana},
	{"armour", graph.StatArmour},
	{"armor", graph.StatArmour},
	{"evasion", graph.StatEvasion},
	{"damage", graph.StatDamage},
}

// ClassifyStat maps a stat name to its StatType, or StatOther.
func ClassifyStat(name string) graph.StatType {
	lower := strings.ToLower(name)
	for _, kw := range statKeywords {
		if strings.Contains(lower, kw.phrase) {
			return kw.typ
		}
	}
	return graph.StatOther
}

// ParseStat turns one free-text stat line into a typed modifier.
//
// Lines with a leading number become numeric modifiers; "reduced" and
// "less" negate the value. Anything else becomes a StatOther modifier
// carrying the whole line as text.
func ParseStat(line string) graph.StatModifier {
	line = strings.TrimSpace(line)
	m := statLine.FindStringSubmatch(line)
	if m == nil {
		return graph.StatModifier{Type: graph.StatOther, Name: line, Value: graph.Text(line)}
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return graph.StatModifier{Type: graph.StatOther, Name: line, Value: graph.Text(line)}
	}
	if m[3] == "reduced" || m[3] == "less" {
		v = -v
	}
	name := m[4]
	return graph.StatModifier{
		Type:      ClassifyStat(name),
		Name:      name,
		Value:     graph.Num(v),
		IsPercent: m[2] == "%",
	}
}

// RawNode is a position-only node with free-text stats.
type RawNode struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	X                float64  `json:"x"`
	Y                float64  `json:"y"`
	Kind             string   `json:"kind"`
	Stats            []string `json:"stats"`
	ClassRequirement string   `json:"classRequirement,omitempty"`
	IsRoot           bool     `json:"isRoot,omitempty"`
}

// FromRaw converts raw nodes, parsing every stat line once. An empty or
// unknown kind becomes small; start nodes are roots.
func FromRaw(raw []RawNode) []graph.Node {
	out := make([]graph.Node, 0, len(raw))
	for _, r := range raw {
		kind := graph.NodeKind(r.Kind)
		if !kind.Valid() {
			kind = graph.KindSmall
		}
		n := graph.Node{
			ID:               r.ID,
			Name:             r.Name,
			X:                r.X,
			Y:                r.Y,
			Kind:             kind,
			ClassRequirement: r.ClassRequirement,
			IsRoot:           r.IsRoot || kind == graph.KindStart,
			PointCost:        graph.DefaultPointCost,
		}
		for _, s := range r.Stats {
			n.Stats = append(n.Stats, ParseStat(s))
		}
		out = append(out, n)
	}
	return out
}
