// Package defs holds the types and constants shared across every kernel
// subsystem: error codes, object identifiers, and thread identifiers.
package defs

import "strconv"

// Err_t is the fixed negative-integer error taxonomy every syscall and
// handler returns in place of Go's error interface. Zero means success.
type Err_t int

const (
	EOK Err_t = 0

	EInvalidSyscall    Err_t = -1
	EInvalidCapability Err_t = -2
	EPermissionDenied  Err_t = -3
	EOutOfMemory       Err_t = -4
	EInvalidArgument   Err_t = -5
	EWouldBlock        Err_t = -6
	ETimeout           Err_t = -7
	EInterrupted       Err_t = -8
	ENotFound          Err_t = -9
	EInvalidFormat     Err_t = -10
	EIoError           Err_t = -11
	ETooManyProcesses  Err_t = -12
	ENoChild           Err_t = -13
	EBadAddress        Err_t = -14
	EDeviceMemory      Err_t = -15
)

var names = map[Err_t]string{
	EOK:                "OK",
	EInvalidSyscall:    "InvalidSyscall",
	EInvalidCapability: "InvalidCapability",
	EPermissionDenied:  "PermissionDenied",
	EOutOfMemory:       "OutOfMemory",
	EInvalidArgument:   "InvalidArgument",
	EWouldBlock:        "WouldBlock",
	ETimeout:           "Timeout",
	EInterrupted:       "Interrupted",
	ENotFound:          "NotFound",
	EInvalidFormat:     "InvalidFormat",
	EIoError:           "IoError",
	ETooManyProcesses:  "TooManyProcesses",
	ENoChild:           "NoChild",
	EBadAddress:        "BadAddress",
	EDeviceMemory:      "DeviceMemory",
}

// String renders the symbolic name of an error code, or a numeric fallback.
func (e Err_t) String() string {
	if s, ok := names[e]; ok {
		return s
	}
	return "Err(" + strconv.Itoa(int(e)) + ")"
}

// Tid_t identifies a thread, unique for the lifetime of the process.
type Tid_t int

// Pid_t identifies a process.
type Pid_t int

// ObjectType tags what kind of kernel object an ObjectId names.
type ObjectType int

const (
	ObjIpcRing ObjectType = iota
	ObjEndpoint
	ObjNotification
	ObjSharedRegion
	ObjAddressSpace
	ObjTensorBuffer
	ObjThread
)

func (t ObjectType) String() string {
	switch t {
	case ObjIpcRing:
		return "IpcRing"
	case ObjEndpoint:
		return "Endpoint"
	case ObjNotification:
		return "Notification"
	case ObjSharedRegion:
		return "SharedRegion"
	case ObjAddressSpace:
		return "AddressSpace"
	case ObjTensorBuffer:
		return "TensorBuffer"
	case ObjThread:
		return "Thread"
	default:
		return "Object(?)"
	}
}

// ObjectId is a monotonically-increasing identifier tagged with its type.
// Identifiers are never reused after the object they name is destroyed.
type ObjectId struct {
	Type ObjectType
	Id   uint64
}
