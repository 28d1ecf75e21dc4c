package provisioner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hellblazer/steward/pkg/types"
)

// Volume kinds provisioned per tenant
const (
	VolumeKindConfig = "config"
	VolumeKindCache  = "cache"
)

// SharedCacheVolume is mounted into every worker, warm ones included
const SharedCacheVolume = "steward-shared-cache"

// tenantVolumeKinds lists the per-tenant volumes and their mount
// targets inside the worker, in mount order
var tenantVolumeKinds = []struct {
	kind   string
	target string
}{
	{VolumeKindConfig, "/home/agent/.agent"},
	{VolumeKindCache, "/home/agent/.cache"},
}

// TenantHash derives the stable tenant identifier from a raw identity
// string: first 12 hex chars of its SHA-256 digest. The plaintext
// identity never appears in a volume or container name.
func TenantHash(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])[:12]
}

// TenantVolumeName is a pure function of (tenantHash, kind). Identical
// inputs always produce the identical name.
func TenantVolumeName(tenantHash, kind string) string {
	return fmt.Sprintf("steward-%s-%s", kind, tenantHash)
}

// EnsureTenantVolumes creates the tenant's volume set if absent and
// returns the bindings. Creation is idempotent, so a second session for
// the same tenant reuses the same volumes.
func (p *Provisioner) EnsureTenantVolumes(ctx context.Context, tenantHash string) ([]types.VolumeBinding, error) {
	bindings := make([]types.VolumeBinding, 0, len(tenantVolumeKinds))
	for _, v := range tenantVolumeKinds {
		name := TenantVolumeName(tenantHash, v.kind)
		labels := map[string]string{
			"steward.volume": v.kind,
			"steward.tenant": tenantHash,
		}
		if err := p.rt.EnsureVolume(ctx, name, labels); err != nil {
			return nil, fmt.Errorf("failed to ensure tenant volume %s: %w", name, err)
		}
		bindings = append(bindings, types.VolumeBinding{Source: name, Target: v.target})
	}
	return bindings, nil
}

// EnsureSharedVolumes creates the volumes every worker mounts and
// returns their bindings
func (p *Provisioner) EnsureSharedVolumes(ctx context.Context) ([]types.VolumeBinding, error) {
	labels := map[string]string{"steward.volume": "shared-cache"}
	if err := p.rt.EnsureVolume(ctx, SharedCacheVolume, labels); err != nil {
		return nil, fmt.Errorf("failed to ensure shared volume %s: %w", SharedCacheVolume, err)
	}
	return []types.VolumeBinding{{Source: SharedCacheVolume, Target: "/var/cache/steward"}}, nil
}
