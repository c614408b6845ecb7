// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pricing estimates the cost of a job from a static per-minute
// price table for hosted runners. The table is a lookup, not a billing
// source of truth: self-hosted and unrecognized runners yield no estimate
// at all rather than a zero one.
package pricing

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed rates.yaml
var ratesYAML []byte

// rates maps normalized OS name to core count to USD per minute.
var rates map[string]map[int]float64

func init() {
	if err := yaml.Unmarshal(ratesYAML, &rates); err != nil {
		panic("pricing: embedded rate table is malformed: " + err.Error())
	}
}

var corePattern = regexp.MustCompile(`(\d+)[-_]?cores?\b`)

// PerMinute returns the per-minute price for a runner, identified by its
// OS and label list. The second return is false for self-hosted runners
// and for OS/core combinations the table does not price.
func PerMinute(os string, labels []string) (float64, bool) {
	for _, l := range labels {
		if strings.EqualFold(l, "self-hosted") {
			return 0, false
		}
	}

	byCores, ok := rates[normalizeOS(os)]
	if !ok {
		return 0, false
	}

	price, ok := byCores[coreCount(os, labels)]
	return price, ok
}

// Estimate returns the estimated cost of a job of the given duration.
// The second return is false when the runner cannot be priced.
func Estimate(os string, labels []string, duration time.Duration) (float64, bool) {
	perMinute, ok := PerMinute(os, labels)
	if !ok {
		return 0, false
	}
	return duration.Minutes() * perMinute, true
}

// normalizeOS maps the runner-reported OS to a rate table key.
func normalizeOS(os string) string {
	switch strings.ToLower(os) {
	case "linux", "ubuntu":
		return "linux"
	case "windows":
		return "windows"
	case "macos", "darwin":
		return "macos"
	default:
		return ""
	}
}

// coreCount parses a core count out of the primary runner label (larger
// hosted runners carry labels like "ubuntu-latest-8-cores"). Labels
// without one get the default size for the OS.
func coreCount(os string, labels []string) int {
	if len(labels) > 0 {
		if m := corePattern.FindStringSubmatch(strings.ToLower(labels[0])); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	if normalizeOS(os) == "macos" {
		return 3
	}
	return 2
}
