package attest

import (
	"context"
	"testing"

	"code.uvattest.org/golang/pkg/keystore"
)

func TestVerifierStrictIncrement(t *testing.T) {
	ctx := context.Background()
	verifier, _ := makePeerEngines(t)

	for want := uint32(1); want <= 3; want++ {
		req, err := verifier.NewRequest(ctx)
		if nil != err {
			t.Fatalf("failed NewRequest, got error %v", err)
		}
		if want != req.Counter {
			t.Errorf("failed counter verif, %d != %d", req.Counter, want)
		}
	}
	if 3 != verifier.Counter() {
		t.Errorf("failed stored counter verif, %d != 3", verifier.Counter())
	}
}

func TestVerifierNonceFreshness(t *testing.T) {
	ctx := context.Background()
	verifier, _ := makePeerEngines(t)

	r1, err := verifier.NewRequest(ctx)
	if nil != err {
		t.Fatalf("failed NewRequest, got error %v", err)
	}
	r2, err := verifier.NewRequest(ctx)
	if nil != err {
		t.Fatalf("failed NewRequest, got error %v", err)
	}
	if r1.Nonce == r2.Nonce {
		t.Error("consecutive requests share the same nonce")
	}
}

func TestVerifierRequestBinding(t *testing.T) {
	ctx := context.Background()

	var kauth, kattest keystore.Key
	kauth[4] = 0x44
	store := keystore.New(kauth, kattest, "")
	verifier, err := NewVerifier(VerifierCfg{Keys: store})
	if nil != err {
		t.Fatalf("failed NewVerifier, got error %v", err)
	}

	req, err := verifier.NewRequest(ctx)
	if nil != err {
		t.Fatalf("failed NewRequest, got error %v", err)
	}
	if req.State != store.SoftwareState() {
		t.Error("request state does not match the keystore digest")
	}

	want := computeMac(store.GetKey(keystore.KindAuth), req.Counter, req.State, req.Nonce)
	if want != req.Mac {
		t.Error("request mac does not bind counter/state/nonce under Kauth")
	}
}

func TestVerifierEvalReport(t *testing.T) {
	ctx := context.Background()
	verifier, prover := makePeerEngines(t)

	req, err := verifier.NewRequest(ctx)
	if nil != err {
		t.Fatalf("failed NewRequest, got error %v", err)
	}
	rep, _ := prover.Answer(ctx, req)

	// genuine successful report
	result := verifier.EvalReport(ctx, req, rep)
	if !result.Accepted {
		t.Error("genuine report was not accepted")
	}
	if !result.ReportMacValid {
		t.Error("genuine report mac was flagged invalid")
	}
	if VerdictAccept != result.Round.Verdict {
		t.Errorf("failed verdict verif, got %s", result.Round.Verdict)
	}

	// successful flag with a corrupted mac: the flag stays authoritative
	// but the mismatch is surfaced
	bad := rep
	bad.Mac[3] ^= 0x10
	result = verifier.EvalReport(ctx, req, bad)
	if !result.Accepted {
		t.Error("flag driven accept decision was overridden")
	}
	if result.ReportMacValid {
		t.Error("corrupted report mac was not flagged")
	}
	if VerdictBadMac != result.Round.Verdict {
		t.Errorf("failed verdict verif, got %s", result.Round.Verdict)
	}

	// refusal report
	result = verifier.EvalReport(ctx, req, AttestationReport{})
	if result.Accepted {
		t.Error("refusal report was accepted")
	}
	if VerdictRefused != result.Round.Verdict {
		t.Errorf("failed verdict verif, got %s", result.Round.Verdict)
	}
}

func TestVerifierRoundNotifications(t *testing.T) {
	ctx := context.Background()

	var kauth, kattest keystore.Key
	var rounds []Round
	verifier, err := NewVerifier(VerifierCfg{
		Keys:    keystore.New(kauth, kattest, ""),
		OnRound: func(_ context.Context, r Round) { rounds = append(rounds, r) },
	})
	if nil != err {
		t.Fatalf("failed NewVerifier, got error %v", err)
	}

	req, err := verifier.NewRequest(ctx)
	if nil != err {
		t.Fatalf("failed NewRequest, got error %v", err)
	}
	verifier.EvalReport(ctx, req, AttestationReport{})

	if 1 != len(rounds) {
		t.Fatalf("failed notification count verif, %d != 1", len(rounds))
	}
	if RoleVerifier != rounds[0].Role {
		t.Errorf("round role is %s, want verifier", rounds[0].Role)
	}
	if VerdictRefused != rounds[0].Verdict {
		t.Errorf("round verdict is %s, want Refused", rounds[0].Verdict)
	}
}

func TestVerifierCfgCheck(t *testing.T) {
	_, err := NewVerifier(VerifierCfg{})
	if nil == err {
		t.Error("NewVerifier accepted a nil keystore")
	}
}
