package install

// Stage is a position in the installation state machine. Stages only move
// forward; any failure moves to StageAborted.
type Stage int

const (
	StageIdle Stage = iota
	StagePreconditions
	StageDiskSelection
	StagePartitioning
	StagePartitionAssignment
	StageFormat
	StageMount
	StageBaseInstall
	StageFstab
	StageChroot
	StageUnmount
	StageReboot
	StageDone
	StageAborted
)

var stageNames = map[Stage]string{
	StageIdle:                "idle",
	StagePreconditions:       "preconditions",
	StageDiskSelection:       "disk-selection",
	StagePartitioning:        "partitioning",
	StagePartitionAssignment: "partition-assignment",
	StageFormat:              "format",
	StageMount:               "mount",
	StageBaseInstall:         "base-install",
	StageFstab:               "fstab",
	StageChroot:              "chroot",
	StageUnmount:             "unmount",
	StageReboot:              "reboot",
	StageDone:                "done",
	StageAborted:             "aborted",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageAborted
}
