package transaction

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUpdateDeltas(t *testing.T) {
	x := uuid.New()
	y := uuid.New()

	tests := []struct {
		name    string
		old     *Transaction
		updated *Transaction
		want    map[uuid.UUID]string
	}{
		{
			name:    "same account nets to B minus A",
			old:     &Transaction{AccountID: x, Amount: dec("-100")},
			updated: &Transaction{AccountID: x, Amount: dec("-130")},
			want:    map[uuid.UUID]string{x: "-30"},
		},
		{
			name:    "move between accounts",
			old:     &Transaction{AccountID: x, Amount: dec("-100")},
			updated: &Transaction{AccountID: y, Amount: dec("-80")},
			want:    map[uuid.UUID]string{x: "100", y: "-80"},
		},
		{
			name:    "no amount change yields no delta",
			old:     &Transaction{AccountID: x, Amount: dec("25.50")},
			updated: &Transaction{AccountID: x, Amount: dec("25.5")},
			want:    map[uuid.UUID]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := updateDeltas(tt.old, tt.updated)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d deltas, want %d: %+v", len(got), len(tt.want), got)
			}
			for _, d := range got {
				if !d.Amount.Equal(dec(tt.want[d.AccountID])) {
					t.Errorf("delta for %s = %s, want %s", d.AccountID, d.Amount, tt.want[d.AccountID])
				}
			}
		})
	}
}

func TestNormalizeDeltas_SortedByAccount(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	var in []BalanceDelta
	for _, id := range ids {
		in = append(in, BalanceDelta{AccountID: id, Amount: dec("1")})
	}

	got := NormalizeDeltas(in...)
	for i := 1; i < len(got); i++ {
		if bytes.Compare(got[i-1].AccountID[:], got[i].AccountID[:]) >= 0 {
			t.Fatalf("deltas not sorted: %v before %v", got[i-1].AccountID, got[i].AccountID)
		}
	}
}

func TestDeleteDeltas(t *testing.T) {
	tx := &Transaction{AccountID: uuid.New(), Amount: dec("-42.10")}
	got := deleteDeltas(tx)
	if len(got) != 1 || !got[0].Amount.Equal(dec("42.10")) {
		t.Errorf("deleteDeltas() = %+v", got)
	}
}
