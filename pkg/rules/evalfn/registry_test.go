package evalfn

import (
	"context"
	"testing"
	"time"

	"github.com/zpam/spamd/pkg/message"
)

func TestParseEvalCallSplitsNameAndArgs(t *testing.T) {
	name, args := parseEvalCall(`check_thing("a", 'b', c)`)
	if name != "check_thing" {
		t.Fatalf("name = %q, want check_thing", name)
	}
	want := []string{"a", "b", "c"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestParseEvalCallBareNameHasNoArgs(t *testing.T) {
	name, args := parseEvalCall("check_for_fake_aol_relay_in_rcvd")
	if name != "check_for_fake_aol_relay_in_rcvd" {
		t.Fatalf("name = %q", name)
	}
	if args != nil {
		t.Fatalf("args = %v, want nil", args)
	}
}

func TestCallLocalDispatchesRegisteredFunc(t *testing.T) {
	reg := NewRegistry(time.Second)
	called := false
	if err := reg.RegisterLocal("my_check", func(ctx context.Context, msg *message.Message, args []string) (bool, error) {
		called = true
		return true, nil
	}); err != nil {
		t.Fatalf("RegisterLocal: %v", err)
	}

	hit, err := reg.CallLocal(context.Background(), "my_check()", nil)
	if err != nil {
		t.Fatalf("CallLocal: %v", err)
	}
	if !called || !hit {
		t.Fatalf("expected registered callback to be invoked and return true")
	}
}

func TestCallLocalUnknownNameErrors(t *testing.T) {
	reg := NewRegistry(time.Second)
	if _, err := reg.CallLocal(context.Background(), "nope()", nil); err == nil {
		t.Fatalf("expected error for unregistered callback")
	}
}

func TestRegisterLocalDuplicateErrors(t *testing.T) {
	reg := NewRegistry(time.Second)
	fn := func(ctx context.Context, msg *message.Message, args []string) (bool, error) { return false, nil }
	if err := reg.RegisterLocal("dup", fn); err != nil {
		t.Fatalf("first RegisterLocal: %v", err)
	}
	if err := reg.RegisterLocal("dup", fn); err == nil {
		t.Fatalf("expected error registering duplicate name")
	}
}

func TestLaunchNetworkDeliversResult(t *testing.T) {
	reg := NewRegistry(time.Second)
	if err := reg.RegisterNetwork("probe", func(ctx context.Context, msg *message.Message, args []string) NetworkResult {
		return NetworkResult{Listed: true, Text: "blocked"}
	}); err != nil {
		t.Fatalf("RegisterNetwork: %v", err)
	}

	ch := reg.LaunchNetwork(context.Background(), "probe()", nil)
	res := <-ch
	if !res.Listed || res.Text != "blocked" {
		t.Fatalf("got %+v", res)
	}
}

func TestEvaluateRBLResultReadsHarvestedMap(t *testing.T) {
	reg := NewRegistry(time.Second)
	results := map[string]NetworkResult{"MY_RBL": {Listed: true}}
	if !reg.EvaluateRBLResult("MY_RBL", results) {
		t.Fatalf("expected EvaluateRBLResult to report Listed=true")
	}
	if reg.EvaluateRBLResult("OTHER_RBL", results) {
		t.Fatalf("expected EvaluateRBLResult to report false for an absent key")
	}
}
