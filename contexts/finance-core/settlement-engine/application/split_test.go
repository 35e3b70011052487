package application

import (
	"errors"
	"testing"

	domainerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
)

func TestSplitQuarterVote(t *testing.T) {
	// 25 cents at 69/30/1: agent and platform round down, creator absorbs
	// the remainder.
	split, err := Split(25, 69, 30, 1)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if split.AgentCents != 0 {
		t.Fatalf("expected agent share 0, got %d", split.AgentCents)
	}
	if split.PlatformCents != 7 {
		t.Fatalf("expected platform share 7, got %d", split.PlatformCents)
	}
	if split.CreatorCents != 18 {
		t.Fatalf("expected creator share 18, got %d", split.CreatorCents)
	}
}

func TestSplitWholeDollar(t *testing.T) {
	split, err := Split(100, 69, 30, 1)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if split.CreatorCents != 69 || split.PlatformCents != 30 || split.AgentCents != 1 {
		t.Fatalf("expected 69/30/1, got %d/%d/%d", split.CreatorCents, split.PlatformCents, split.AgentCents)
	}
}

func TestSplitAlwaysSumsToTotal(t *testing.T) {
	for total := int64(0); total <= 1000; total++ {
		split, err := Split(total, 69, 30, 1)
		if err != nil {
			t.Fatalf("split of %d failed: %v", total, err)
		}
		sum := split.CreatorCents + split.PlatformCents + split.AgentCents
		if sum != total {
			t.Fatalf("split of %d sums to %d", total, sum)
		}
		if split.CreatorCents < 0 || split.PlatformCents < 0 || split.AgentCents < 0 {
			t.Fatalf("split of %d produced a negative share: %+v", total, split)
		}
	}
}

func TestSplitRemainderGoesToCreatorOnly(t *testing.T) {
	split, err := Split(99, 69, 30, 1)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	// floor(99*30/100)=29, floor(99*1/100)=0, creator takes the rest.
	if split.PlatformCents != 29 || split.AgentCents != 0 || split.CreatorCents != 70 {
		t.Fatalf("unexpected split %d/%d/%d", split.CreatorCents, split.PlatformCents, split.AgentCents)
	}
}

func TestSplitRejectsBadPercentages(t *testing.T) {
	if _, err := Split(100, 50, 30, 10); !errors.Is(err, domainerrors.ErrInvalidSplit) {
		t.Fatalf("expected invalid split for sum != 100, got %v", err)
	}
	if _, err := Split(100, 110, -20, 10); !errors.Is(err, domainerrors.ErrInvalidSplit) {
		t.Fatalf("expected invalid split for negative pct, got %v", err)
	}
}

func TestSplitRejectsNegativeTotal(t *testing.T) {
	if _, err := Split(-1, 69, 30, 1); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative total, got %v", err)
	}
}
