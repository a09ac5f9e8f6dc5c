package device

import (
	"fmt"
	"testing"
	"time"
)

// setupBenchRegistry creates a registry pre-populated with n devices.
func setupBenchRegistry(b *testing.B, n int) *Registry {
	b.Helper()
	reg := NewRegistry()

	for i := 0; i < n; i++ {
		brand := "daikin"
		if i%3 == 0 {
			brand = "lg"
		}
		key := NewKey(brand, fmt.Sprintf("esp-%04d", i))
		if _, _, err := reg.Upsert(key, Patch{ButtonCount: intPtr(i % 16)}); err != nil {
			b.Fatalf("upserting device %d: %v", i, err)
		}
	}
	return reg
}

func BenchmarkRegistryUpsert(b *testing.B) {
	reg := setupBenchRegistry(b, 100)
	key := NewKey("daikin", "esp-0050")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Upsert(key, Patch{}) //nolint:errcheck // benchmark
	}
}

func BenchmarkRegistryUpsert_Parallel(b *testing.B) {
	reg := setupBenchRegistry(b, 100)
	key := NewKey("daikin", "esp-0050")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			reg.Upsert(key, Patch{}) //nolint:errcheck // benchmark
		}
	})
}

func BenchmarkRegistrySnapshot(b *testing.B) {
	reg := setupBenchRegistry(b, 200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = reg.Snapshot()
	}
}

func BenchmarkRegistryEvictStale_NoneStale(b *testing.B) {
	reg := setupBenchRegistry(b, 200)
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EvictStale(now, time.Hour)
	}
}
