package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"code.uvattest.org/golang/pkg/protocols/attest"
)

func testRecord(counter uint32) Record {
	return Record{
		Id:      uuid.New(),
		Role:    string(attest.RoleVerifier),
		Counter: counter,
		Verdict: attest.VerdictAccept.String(),
		At:      time.Now().UTC(),
	}
}

func TestRecordCheck(t *testing.T) {
	rec := testRecord(1)
	err := rec.Check()
	if nil != err {
		t.Fatalf("failed Check, got error %v", err)
	}

	cases := []struct {
		name   string
		mangle func(r *Record)
	}{
		{"nil-id", func(r *Record) { r.Id = uuid.Nil }},
		{"empty-role", func(r *Record) { r.Role = "" }},
		{"empty-verdict", func(r *Record) { r.Verdict = "" }},
		{"zero-at", func(r *Record) { r.At = time.Time{} }},
	}
	for _, tc := range cases {
		rec := testRecord(1)
		tc.mangle(&rec)
		err := rec.Check()
		if nil == err {
			t.Errorf("%s: Check accepted invalid record", tc.name)
			continue
		}
		if !errors.Is(err, Error) {
			t.Errorf("%s: error does not wrap audit.Error", tc.name)
		}
		t.Logf("%s: got EXPECTED error:\n%v", tc.name, err)
	}
}

func TestNewRecord(t *testing.T) {
	round := attest.Round{
		Id:      uuid.New(),
		Role:    attest.RoleProver,
		Counter: 42,
		Verdict: attest.VerdictStaleCounter,
		At:      time.Now().UTC(),
	}

	rec := NewRecord(round)
	if rec.Id != round.Id {
		t.Error("Id was not carried over")
	}
	if string(attest.RoleProver) != rec.Role {
		t.Errorf("invalid Role, got %q", rec.Role)
	}
	if 42 != rec.Counter {
		t.Errorf("invalid Counter, got %d", rec.Counter)
	}
	if "StaleCounter" != rec.Verdict {
		t.Errorf("invalid Verdict, got %q", rec.Verdict)
	}
	if !rec.At.Equal(round.At) {
		t.Error("At was not carried over")
	}

	err := rec.Check()
	if nil != err {
		t.Errorf("converted record fails Check, got error %v", err)
	}
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	count, err := store.Count(ctx)
	if nil != err {
		t.Fatalf("failed Count, got error %v", err)
	}
	if 0 != count {
		t.Fatalf("empty store reports %d records", count)
	}

	for c := uint32(1); c <= 3; c++ {
		err = store.Append(ctx, testRecord(c))
		if nil != err {
			t.Fatalf("failed Append #%d, got error %v", c, err)
		}
	}

	count, err = store.Count(ctx)
	if nil != err {
		t.Fatalf("failed Count, got error %v", err)
	}
	if 3 != count {
		t.Fatalf("invalid Count, got %d", count)
	}

	recs, err := store.List(ctx)
	if nil != err {
		t.Fatalf("failed List, got error %v", err)
	}
	if 3 != len(recs) {
		t.Fatalf("invalid List length, got %d", len(recs))
	}
	for i, rec := range recs {
		if uint32(i+1) != rec.Counter {
			t.Errorf("record #%d out of append order, got counter %d", i, rec.Counter)
		}
	}

	// List returns a copy, mutating it does not corrupt the store
	recs[0].Counter = 999
	again, err := store.List(ctx)
	if nil != err {
		t.Fatalf("failed List, got error %v", err)
	}
	if 1 != again[0].Counter {
		t.Error("List does not isolate callers from the store")
	}
}

func TestMemStoreRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	rec := testRecord(1)
	rec.Verdict = ""
	err := store.Append(ctx, rec)
	if nil == err {
		t.Fatal("Append accepted an invalid record")
	}
	t.Logf("got EXPECTED error:\n%v", err)

	count, _ := store.Count(ctx)
	if 0 != count {
		t.Errorf("rejected record was journaled, count %d", count)
	}
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	var reported error
	fn := Journal(store, func(err error) { reported = err })

	fn(ctx, attest.Round{
		Id:      uuid.New(),
		Role:    attest.RoleVerifier,
		Counter: 7,
		Verdict: attest.VerdictAccept,
		At:      time.Now().UTC(),
	})
	if nil != reported {
		t.Fatalf("journal reported error for valid round: %v", reported)
	}

	count, err := store.Count(ctx)
	if nil != err {
		t.Fatalf("failed Count, got error %v", err)
	}
	if 1 != count {
		t.Fatalf("round was not journaled, count %d", count)
	}

	// an unjournalable round reaches onErr, never the protocol
	fn(ctx, attest.Round{})
	if nil == reported {
		t.Fatal("journal swallowed the Append failure")
	}
	t.Logf("got EXPECTED error:\n%v", reported)
}
