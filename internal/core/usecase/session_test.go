package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

func TestBootstrapCreatesIdentityWhenMissing(t *testing.T) {
	identity := &identityFake{}
	b := NewSessionBootstrapper(identity, nil)

	state := b.Bootstrap(context.Background())
	if !state.Ready || state.Error != "" {
		t.Fatalf("expected ready session, got %+v", state)
	}
	if identity.signInCalls != 1 {
		t.Fatalf("expected 1 sign-in call, got %d", identity.signInCalls)
	}
	if state.UserID != "anon-1" {
		t.Fatalf("expected user id anon-1, got %q", state.UserID)
	}
	if identity.listeners != 1 {
		t.Fatalf("expected listener registration, got %d", identity.listeners)
	}
}

func TestBootstrapTwiceWithEstablishedIdentitySkipsCreation(t *testing.T) {
	identity := &identityFake{current: &domain.Identity{UserID: "existing"}}
	b := NewSessionBootstrapper(identity, nil)

	b.Bootstrap(context.Background())
	b.Bootstrap(context.Background())

	if identity.signInCalls != 0 {
		t.Fatalf("expected no sign-in calls, got %d", identity.signInCalls)
	}
	if identity.listeners != 2 || identity.unsubscribe != 1 {
		t.Fatalf("expected previous listener released before re-register, listeners=%d unsub=%d", identity.listeners, identity.unsubscribe)
	}

	b.Close()
	b.Close()
	if identity.unsubscribe != 2 {
		t.Fatalf("expected close to release exactly once, got %d", identity.unsubscribe)
	}
}

func TestBootstrapFailureIsCapturedAndTerminal(t *testing.T) {
	identity := &identityFake{signInErr: errors.New("anonymous sign-ins are disabled")}
	b := NewSessionBootstrapper(identity, nil)

	state := b.Bootstrap(context.Background())
	if !state.Ready {
		t.Fatalf("expected ready=true even on failure")
	}
	if !strings.Contains(state.Error, "anonymous sign-ins are disabled") {
		t.Fatalf("expected captured error, got %q", state.Error)
	}
	if state.Status() != domain.NotebookError {
		t.Fatalf("expected error status, got %s", state.Status())
	}

	identity.signInErr = nil
	again := b.Bootstrap(context.Background())
	if again != state {
		t.Fatalf("expected terminal state, got %+v", again)
	}
	if identity.signInCalls != 1 {
		t.Fatalf("expected no further sign-in attempts, got %d", identity.signInCalls)
	}
	if identity.listeners != 0 {
		t.Fatalf("expected no listener after failure, got %d", identity.listeners)
	}
	b.Close()
}

func TestBootstrapInitialStateIsLoading(t *testing.T) {
	b := NewSessionBootstrapper(&identityFake{}, nil)
	if b.State().Status() != domain.NotebookLoading {
		t.Fatalf("expected loading before bootstrap")
	}
}
