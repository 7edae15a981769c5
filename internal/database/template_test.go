package database_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kozaktomas/faceauth/internal/constants"
	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/database/mock"
	"github.com/kozaktomas/faceauth/internal/facematch"
)

func descriptor(seed float32) facematch.Descriptor {
	d := make(facematch.Descriptor, constants.DescriptorDim)
	for i := range d {
		d[i] = seed + float32(i)/1000
	}
	return d
}

func TestKVTemplateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := database.NewKVTemplateStore(mock.NewMockKeyValueStore())
	v := descriptor(0.1)

	if err := store.Save(ctx, "alice", v); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := &facematch.FaceTemplate{Label: "alice", Descriptors: []facematch.Descriptor{v}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestKVTemplateStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	kv := mock.NewMockKeyValueStore()
	store := database.NewKVTemplateStore(kv)

	if err := store.Save(ctx, "alice", descriptor(0.1)); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "bob", descriptor(0.5)); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "bob" || len(got.Descriptors) != 1 {
		t.Errorf("expected only bob's template, got %+v", got)
	}
	if kv.Keys() != 1 {
		t.Errorf("expected a single stored key, got %d", kv.Keys())
	}
}

func TestKVTemplateStore_StorageFormat(t *testing.T) {
	ctx := context.Background()
	kv := mock.NewMockKeyValueStore()
	store := database.NewKVTemplateStore(kv)

	if err := store.Save(ctx, "alice", facematch.Descriptor{0.5, -0.25}); err != nil {
		t.Fatal(err)
	}

	raw, _ := kv.Get(ctx, "registeredFaceDescriptor")
	want := `{"label":"alice","descriptors":[[0.5,-0.25]]}`
	if string(raw) != want {
		t.Errorf("stored value = %s, want %s", raw, want)
	}
}

func TestKVTemplateStore_MissingInput(t *testing.T) {
	tests := []struct {
		name       string
		username   string
		descriptor facematch.Descriptor
	}{
		{"empty username", "", descriptor(0.1)},
		{"blank username", "   ", descriptor(0.1)},
		{"control characters only", "\t\n\x00", descriptor(0.1)},
		{"nil descriptor", "alice", nil},
		{"empty descriptor", "alice", facematch.Descriptor{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := mock.NewMockKeyValueStore()
			store := database.NewKVTemplateStore(kv)

			err := store.Save(context.Background(), tt.username, tt.descriptor)
			if !errors.Is(err, database.ErrMissingRegistrationInput) {
				t.Errorf("expected ErrMissingRegistrationInput, got %v", err)
			}
			if kv.SetCalls() != 0 {
				t.Error("nothing must be written on missing input")
			}
		})
	}
}

func TestKVTemplateStore_LoadEmpty(t *testing.T) {
	store := database.NewKVTemplateStore(mock.NewMockKeyValueStore())
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil template, got %+v", got)
	}
}

func TestKVTemplateStore_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := mock.NewMockKeyValueStore()
	_ = kv.Set(ctx, constants.TemplateKey, []byte("{not json"))

	if _, err := database.NewKVTemplateStore(kv).Load(ctx); err == nil {
		t.Error("expected decode error")
	}
}

func TestKVTemplateStore_StorageError(t *testing.T) {
	kv := mock.NewMockKeyValueStore()
	kv.SetError = errors.New("disk full")

	err := database.NewKVTemplateStore(kv).Save(context.Background(), "alice", descriptor(0.1))
	if err == nil || errors.Is(err, database.ErrMissingRegistrationInput) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestKVTemplateStore_Mirror(t *testing.T) {
	ctx := context.Background()
	mirror := mock.NewMockTemplateMirror()
	mirror.MirrorError = errors.New("mirror down")
	store := database.NewKVTemplateStore(mock.NewMockKeyValueStore()).WithMirror(mirror)

	// A failing mirror does not fail registration.
	if err := store.Save(ctx, "  Jan   Novák ", descriptor(0.2)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got := mirror.Mirrored()
	if len(got) != 1 || got[0].Label != "Jan Novák" {
		t.Errorf("mirrored = %+v", got)
	}
}
