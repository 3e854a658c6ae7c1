package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUserWaitingForPayment(t *testing.T) {
	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	u := User{Applications: []Application{
		{ID: uuid.New(), Kind: KindRoles, State: StateWaitingForPayment},
		{ID: uuid.New(), Kind: KindSubevents, State: StateWaitingForPayment},
		{ID: uuid.New(), Kind: KindRoles, State: StateWaitingForPayment, ValidTo: &past},
		{ID: uuid.New(), Kind: KindRoles, State: StatePaid},
	}}

	if got := len(u.WaitingForPayment("")); got != 2 {
		t.Fatalf("WaitingForPayment(all) = %d, want 2", got)
	}
	if got := len(u.WaitingForPayment(KindRoles)); got != 1 {
		t.Fatalf("WaitingForPayment(roles) = %d, want 1", got)
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		user User
		want string
	}{
		{User{Username: "jnovak"}, "jnovak"},
		{User{Username: "jnovak", FirstName: "Jan"}, "Jan"},
		{User{Username: "jnovak", LastName: "Novak"}, "Novak"},
		{User{Username: "jnovak", FirstName: "Jan", LastName: "Novak"}, "Jan Novak"},
	}
	for _, tc := range cases {
		if got := tc.user.DisplayName(); got != tc.want {
			t.Errorf("DisplayName() = %q, want %q", got, tc.want)
		}
	}
}

func TestStateCanceled(t *testing.T) {
	for _, s := range []ApplicationState{StateCanceled, StateCanceledNotPaid} {
		if !s.Canceled() {
			t.Errorf("%s should be canceled", s)
		}
	}
	for _, s := range []ApplicationState{StateNew, StateWaitingForPayment, StatePaid} {
		if s.Canceled() {
			t.Errorf("%s should not be canceled", s)
		}
	}
	if ApplicationState("BOGUS").Valid() {
		t.Error("unknown state reported valid")
	}
}
