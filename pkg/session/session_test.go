package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/japokorn/blivet/pkg/actions"
	"github.com/japokorn/blivet/pkg/availability"
	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/size"
)

func TestPlanAndProcess(t *testing.T) {
	s := New(availability.NewCachedProvider(availability.Available))

	sda, err := s.AddDisk("sda", 100*size.GiB)
	if err != nil {
		t.Fatalf("AddDisk: %v", err)
	}
	sdb, err := s.AddDisk("sdb", 100*size.GiB)
	if err != nil {
		t.Fatalf("AddDisk: %v", err)
	}

	md := devices.NewMDArray("md0", "raid1", 100*size.GiB, sda.ID, sdb.ID)
	if _, err := s.Plan(md); err != nil {
		t.Fatalf("Plan(md0): %v", err)
	}
	if s.Queue.Len() != 1 {
		t.Fatalf("queue length = %d", s.Queue.Len())
	}

	if err := s.Process(context.Background(), actions.NoopExecutor{}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !md.Exists {
		t.Error("processed device must exist")
	}
}

func TestPlanRollsBackOnRejection(t *testing.T) {
	s := New(availability.NewCachedProvider(availability.Unavailable))

	sda, err := s.AddDisk("sda", 100*size.GiB)
	if err != nil {
		t.Fatalf("AddDisk: %v", err)
	}
	sdb, err := s.AddDisk("sdb", 100*size.GiB)
	if err != nil {
		t.Fatalf("AddDisk: %v", err)
	}

	md := devices.NewMDArray("md0", "raid1", 100*size.GiB, sda.ID, sdb.ID)
	if _, err := s.Plan(md); err == nil {
		t.Fatal("expected plan to fail without mdadm")
	}
	if _, ok := s.Tree.Get(md.ID); ok {
		t.Error("rejected device must not stay in the tree")
	}
	if s.Queue.Len() != 0 {
		t.Error("rejected device must not be queued")
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := New(availability.NewCachedProvider(availability.Available))
	if _, err := s.AddDisk("sda", 100*size.GiB); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "plan.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, s.Provider)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Tree.Len() != 1 {
		t.Errorf("loaded tree has %d devices, want 1", loaded.Tree.Len())
	}
	if _, ok := loaded.Tree.ByName("sda"); !ok {
		t.Error("loaded tree missing sda")
	}
}
