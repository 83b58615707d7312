package blkpg

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux BLKPG constants (linux/blkpg.h), not exposed by x/sys/unix.
const (
	blkpgAddPartition = 1
	blkpgDelPartition = 2
	blkpg             = 0x1269 // _IO(0x12, 105)
)

// blkpgPartition mirrors struct blkpg_partition.
type blkpgPartition struct {
	start   int64
	length  int64
	pno     int32
	devname [maxDevNameLen]byte
	volname [maxDevNameLen]byte
}

// blkpgIoctlArg mirrors struct blkpg_ioctl_arg.
type blkpgIoctlArg struct {
	op      int32
	flags   int32
	datalen int32
	_       int32 // padding to keep the pointer 8-byte aligned
	data    unsafe.Pointer
}

type linuxIoctl struct{}

func (linuxIoctl) call(fd int, op int32, start, length int64, partno int, devname string) error {
	var part blkpgPartition
	part.start = start
	part.length = length
	part.pno = int32(partno)
	copy(part.devname[:], devname)

	arg := blkpgIoctlArg{
		op:      op,
		datalen: int32(unsafe.Sizeof(part)),
		data:    unsafe.Pointer(&part),
	}
	return ioctlPtr(fd, blkpg, unsafe.Pointer(&arg))
}

func (l linuxIoctl) addPartition(fd int, start, length int64, partno int, devname string) error {
	return l.call(fd, blkpgAddPartition, start, length, partno, devname)
}

func (l linuxIoctl) delPartition(fd int, start, length int64, partno int, devname string) error {
	return l.call(fd, blkpgDelPartition, start, length, partno, devname)
}

func ioctlPtr(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
