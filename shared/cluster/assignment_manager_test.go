package cluster

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIdentity string

func (f fakeIdentity) GetServiceID() string   { return string(f) }
func (f fakeIdentity) GetServiceType() string { return "scoreboard-bridge" }

type fakeLister struct {
	ids []string
	err error
}

func (f *fakeLister) GetActiveServices(context.Context, string) (map[string]registry.ServiceInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]registry.ServiceInfo, len(f.ids))
	for _, id := range f.ids {
		out[id] = registry.ServiceInfo{ServiceID: id}
	}
	return out, nil
}

func TestAloneInstanceOwnsEverything(t *testing.T) {
	sam := NewServiceAssignmentManager(&fakeLister{}, fakeIdentity("a"), 0, zap.NewNop())

	ok, err := sam.IsResponsible("global_snapshot_cleanup_task")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExactlyOneInstanceIsResponsible(t *testing.T) {
	ids := []string{"a", "b", "c"}
	lister := &fakeLister{ids: ids}

	managers := make([]*ServiceAssignmentManager, 0, len(ids))
	for _, id := range ids {
		sam := NewServiceAssignmentManager(lister, fakeIdentity(id), 0, zap.NewNop())
		sam.UpdateRing()
		managers = append(managers, sam)
	}

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("key-%d", i)
		owners := 0
		for _, sam := range managers {
			ok, err := sam.IsResponsible(key)
			require.NoError(t, err)
			if ok {
				owners++
			}
		}
		assert.Equal(t, 1, owners, key)
	}
}

func TestUpdateRingKeepsRingOnError(t *testing.T) {
	lister := &fakeLister{err: errors.New("redis down")}
	sam := NewServiceAssignmentManager(lister, fakeIdentity("a"), 0, zap.NewNop())
	sam.UpdateRing()

	ok, err := sam.IsResponsible("anything")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmptyRingIsAnError(t *testing.T) {
	sam := NewServiceAssignmentManager(&fakeLister{ids: []string{}}, fakeIdentity("a"), 0, zap.NewNop())
	sam.UpdateRing()

	_, err := sam.IsResponsible("anything")
	assert.Error(t, err)
}
