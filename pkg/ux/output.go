// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders CLI output at one of three richness levels.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the shared lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Key:     lipgloss.NewStyle().Foreground(ColorTealPrimary).Width(14),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon is a single status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render colors the icon by meaning.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes leveled output to one writer.
//
// # Thread Safety
//
// Not safe for concurrent use.
type Printer struct {
	w     io.Writer
	level PersonalityLevel
}

// NewPrinter creates a Printer. An empty level is detected from w.
func NewPrinter(w io.Writer, level PersonalityLevel) *Printer {
	if level == "" {
		level = DetectPersonality(w)
	}
	return &Printer{w: w, level: level}
}

// Level returns the active level.
func (p *Printer) Level() PersonalityLevel { return p.level }

// Machine reports whether output is plain.
func (p *Printer) Machine() bool { return p.level == PersonalityMachine }

func (p *Printer) render(s lipgloss.Style, text string) string {
	if p.level != PersonalityFull {
		return text
	}
	return s.Render(text)
}

func (p *Printer) icon(i Icon) string {
	if p.level != PersonalityFull {
		return string(i)
	}
	return i.Render()
}

// Title prints a heading. Machine output omits it.
func (p *Printer) Title(text string) {
	if p.Machine() {
		return
	}
	fmt.Fprintln(p.w, p.render(Styles.Title, text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.Machine() {
		fmt.Fprintf(p.w, "OK\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconSuccess), p.render(Styles.Success, text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.Machine() {
		fmt.Fprintf(p.w, "WARN\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconWarning), p.render(Styles.Warning, text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.Machine() {
		fmt.Fprintf(p.w, "ERROR\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconError), p.render(Styles.Error, text))
}

// Muted prints secondary text. Machine output omits it.
func (p *Printer) Muted(text string) {
	if p.Machine() {
		return
	}
	fmt.Fprintln(p.w, p.render(Styles.Muted, text))
}

// KeyValue prints one labelled field.
func (p *Printer) KeyValue(key string, value any) {
	if p.Machine() {
		fmt.Fprintf(p.w, "%s\t%v\n", key, value)
		return
	}
	fmt.Fprintf(p.w, "%s %v\n", p.render(Styles.Key, key), value)
}

// Row prints tab-separated columns in machine mode and a bulleted,
// space-separated line otherwise.
func (p *Printer) Row(cols ...string) {
	if p.Machine() {
		fmt.Fprintln(p.w, strings.Join(cols, "\t"))
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconBullet), strings.Join(cols, "  "))
}

// Path prints IDs joined by arrows.
func (p *Printer) Path(ids []string) {
	if p.Machine() {
		fmt.Fprintln(p.w, strings.Join(ids, "\t"))
		return
	}
	sep := " " + p.icon(IconArrow) + " "
	fmt.Fprintln(p.w, strings.Join(ids, sep))
}

// Box prints content in a rounded box under a title.
func (p *Printer) Box(title, content string) {
	if p.level != PersonalityFull {
		fmt.Fprintf(p.w, "%s\n%s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
}

// ProgressBar renders current/total as a bar of the given width.
func (p *Printer) ProgressBar(current, total, width int) string {
	if p.Machine() || total <= 0 || width <= 0 {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	bar := p.render(Styles.Success, strings.Repeat("█", filled)) +
		p.render(Styles.Muted, strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d", bar, current, total)
}
