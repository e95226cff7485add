// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package cache

import (
	"strings"
	"testing"

	"github.com/deskmirror/deskmirror/internal/models"
)

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("tickets", models.TicketFilters{Status: models.TicketStatusNew})
	b := Fingerprint("tickets", models.TicketFilters{Status: models.TicketStatusNew})
	if a != b {
		t.Errorf("identical filters must produce identical keys: %s vs %s", a, b)
	}

	c := Fingerprint("tickets", models.TicketFilters{Status: models.TicketStatusClosed})
	if a == c {
		t.Error("different filters must produce different keys")
	}
}

func TestFingerprintEmptyFiltersEqualNil(t *testing.T) {
	empty := Fingerprint("tickets", models.TicketFilters{})
	unfiltered := Fingerprint("tickets", nil)
	if empty != unfiltered {
		t.Errorf("empty filter set should address the unfiltered collection: %s vs %s", empty, unfiltered)
	}
}

func TestFingerprintEntityPrefix(t *testing.T) {
	key := Fingerprint("equipment", models.EquipmentFilters{Location: "B2"})
	if !strings.HasPrefix(key, "equipment:") {
		t.Errorf("key %s should carry the entity prefix", key)
	}
	if EntityOf(key) != "equipment" {
		t.Errorf("EntityOf(%s) = %s", key, EntityOf(key))
	}
}

func TestItemFingerprint(t *testing.T) {
	key := ItemFingerprint("categories", 7)
	if key != "categories:id:7" {
		t.Errorf("unexpected item key %s", key)
	}
	if EntityOf(key) != "categories" {
		t.Errorf("EntityOf(%s) = %s", key, EntityOf(key))
	}
}
