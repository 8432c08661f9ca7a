package domain

// AssignmentStatus mirrors the course assignment lifecycle owned by the
// training domain.
type AssignmentStatus string

const (
	AssignmentStatusAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentStatusInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentStatusCompleted  AssignmentStatus = "COMPLETED"
)

// AssignmentSnapshot is a read-only view of a live course assignment.
type AssignmentSnapshot struct {
	ID       string
	CourseID string
	WorkerID string
	Status   AssignmentStatus
}
