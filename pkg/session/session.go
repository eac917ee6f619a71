// Package session ties the planning pieces together for one caller.
//
// A Session owns exactly one device tree, the action queue planning
// against it, and the capability provider both consult. It is the
// library's front door: load or build a topology, request mutations,
// then hand the surviving actions to an executor.
//
// # Usage
//
// Plan an encrypted array over two disks:
//
//	s := session.New(availability.Default())
//	sda, _ := s.AddDisk("sda", 100*size.GiB)
//	sdb, _ := s.AddDisk("sdb", 100*size.GiB)
//
//	md := devices.NewMDArray("md0", "raid1", 100*size.GiB, sda.ID, sdb.ID)
//	if err := s.Tree.Add(md); err != nil { ... }
//	if _, err := s.Queue.CreateDevice(md); err != nil { ... }
//
//	err := s.Process(ctx, executor)
//
// Sessions are single-owner: no method is safe for concurrent use.
package session

import (
	"context"

	"github.com/japokorn/blivet/pkg/actions"
	"github.com/japokorn/blivet/pkg/availability"
	"github.com/japokorn/blivet/pkg/deps"
	"github.com/japokorn/blivet/pkg/devices"
	"github.com/japokorn/blivet/pkg/devicetree"
	"github.com/japokorn/blivet/pkg/plan"
	"github.com/japokorn/blivet/pkg/size"
)

// Session is one planning run: a tree, its queue, and the capability
// provider they validate against.
type Session struct {
	Tree     *devicetree.Tree
	Queue    *actions.Queue
	Provider availability.Provider
}

// New creates an empty session. A nil provider falls back to the
// process-wide default.
func New(provider availability.Provider) *Session {
	if provider == nil {
		provider = availability.Default()
	}
	tree := devicetree.New()
	return &Session{
		Tree:     tree,
		Queue:    actions.NewQueue(tree, provider),
		Provider: provider,
	}
}

// Load opens a plan file and starts a session over its topology.
func Load(path string, provider availability.Provider) (*Session, error) {
	tree, err := plan.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		provider = availability.Default()
	}
	return &Session{
		Tree:     tree,
		Queue:    actions.NewQueue(tree, provider),
		Provider: provider,
	}, nil
}

// Save writes the session's current topology to a plan file.
func (s *Session) Save(path string) error {
	return plan.WriteFile(path, s.Tree)
}

// Resolver returns the dependency resolver the session's queue uses.
func (s *Session) Resolver() *deps.Resolver {
	return s.Queue.Resolver()
}

// AddDisk registers an existing disk in the tree. Disks are never
// created by a plan; they mirror hardware, so the device is marked
// existing with its size already probed.
func (s *Session) AddDisk(name string, sz size.Size) (*devices.Device, error) {
	d := devices.NewDisk(name, sz)
	d.Exists = true
	d.SetCurrentSize(sz)
	if err := s.Tree.Add(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Plan registers a planned device in the tree and queues its creation
// in one step. On failure nothing is left behind: a device that cannot
// be scheduled is removed from the tree again.
func (s *Session) Plan(d *devices.Device) (*actions.Action, error) {
	if err := s.Tree.Add(d); err != nil {
		return nil, err
	}
	a, err := s.Queue.CreateDevice(d)
	if err != nil {
		_ = s.Tree.Remove(d.ID)
		return nil, err
	}
	return a, nil
}

// Process replays the queued actions through the executor, advancing
// the tree as each action succeeds.
func (s *Session) Process(ctx context.Context, exec actions.Executor) error {
	return s.Queue.Process(ctx, exec)
}
