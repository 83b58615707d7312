// Package blkpg is the kernel re-read bridge: BLKPG_ADD_PARTITION and
// BLKPG_DEL_PARTITION ioctl wrappers with the retry ladder udev briefly
// holding the disk requires (spec §4.7).
package blkpg

import (
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/retry.v1"

	"github.com/juju/ratelimit"
)

// ErrKernelRescanFailed is returned when every retry attempt fails.
var ErrKernelRescanFailed = xerrors.New("kernel rescan failed")

// maxDevNameLen is the size of the devname field in blkpg_partition.
const maxDevNameLen = 64

// ioctl is the minimal syscall surface the bridge needs; the Linux
// implementation (ioctl_linux.go) satisfies it with real BLKPG ioctls, and
// tests substitute a fake.
type ioctl interface {
	addPartition(fd int, start, length int64, partno int, devname string) error
	delPartition(fd int, start, length int64, partno int, devname string) error
}

// retryStrategy is the 0s / 3s / 3s ladder from spec §4.7: up to three
// attempts because udev can hold the disk briefly.
var retryStrategy = retry.LimitCount(3, retry.Exponential{
	Initial: 0,
	Factor:  1,
	Jitter:  false,
})

// Bridge drives BLKPG mutations with retry and a companion token-bucket
// limiter that smooths out bursts when many partitions mutate in one
// batch (e.g. wipe_table followed by a fresh create()).
type Bridge struct {
	ioctl   ioctl
	limiter *ratelimit.Bucket
	// attemptDelay lets tests collapse the 3s waits; production code
	// leaves it at the zero value, which means "use the real strategy".
	attemptDelay time.Duration
}

// New returns a Bridge backed by real Linux BLKPG ioctls.
func New() *Bridge {
	return &Bridge{
		ioctl:   linuxIoctl{},
		limiter: ratelimit.NewBucketWithRate(4, 4), // at most 4 pending rescans before pacing
	}
}

func newWithIoctl(i ioctl) *Bridge {
	return &Bridge{ioctl: i, limiter: ratelimit.NewBucketWithRate(1000, 1000)}
}

// Add invokes BLKPG_ADD_PARTITION for the given partition, retrying per
// the spec's ladder. fd must refer to the whole-disk device, already
// fsync'ed by the caller (spec §4.7 "Before ioctl the caller must have
// fsync'ed the disk").
func (b *Bridge) Add(fd int, startBytes, lengthBytes int64, partNumber int, devName string) error {
	if len(devName) >= maxDevNameLen {
		return xerrors.Errorf("device name %q exceeds blkpg name field", devName)
	}
	b.limiter.Wait(1)
	return b.retryCall(func() error {
		return b.ioctl.addPartition(fd, startBytes, lengthBytes, partNumber, devName)
	})
}

// Del invokes BLKPG_DEL_PARTITION, with the same retry ladder.
func (b *Bridge) Del(fd int, partNumber int, devName string) error {
	if len(devName) >= maxDevNameLen {
		return xerrors.Errorf("device name %q exceeds blkpg name field", devName)
	}
	b.limiter.Wait(1)
	return b.retryCall(func() error {
		return b.ioctl.delPartition(fd, 0, 0, partNumber, devName)
	})
}

func (b *Bridge) retryCall(call func() error) error {
	var lastErr error
	for a := retryStrategy.Start(nil); a.Next(nil); {
		if a.Count() > 1 && b.attemptDelay >= 0 {
			delay := 3 * time.Second
			if b.attemptDelay > 0 {
				delay = b.attemptDelay
			}
			time.Sleep(delay)
		}
		if lastErr = call(); lastErr == nil {
			return nil
		}
	}
	return xerrors.Errorf("%w: %v", ErrKernelRescanFailed, lastErr)
}
