package mode

// Mode is the topic domain a conversation is currently scoped to. It selects
// which retrieval index and which memory partition apply.
type Mode string

const (
	DepartmentAnnouncement Mode = "department_announcement"
	Scholarship            Mode = "scholarship"
	FacultyLab             Mode = "faculty_lab"
	CourseRequirement      Mode = "course_requirement"
)

// None marks a conversation that has not selected a mode yet.
const None Mode = ""

var labels = map[Mode]string{
	DepartmentAnnouncement: "Department Announcements",
	Scholarship:            "Scholarships & Grants",
	FacultyLab:             "Faculty & Labs",
	CourseRequirement:      "Course Requirements",
}

// All returns every recognized mode in stable menu order.
func All() []Mode {
	return []Mode{DepartmentAnnouncement, Scholarship, FacultyLab, CourseRequirement}
}

// Parse maps a raw string onto a recognized mode.
func Parse(raw string) (Mode, bool) {
	m := Mode(raw)
	if _, ok := labels[m]; ok {
		return m, true
	}
	return None, false
}

// Valid reports whether m is a recognized member of the mode set.
func (m Mode) Valid() bool {
	_, ok := labels[m]
	return ok
}

// Label returns the user-facing display name.
func (m Mode) Label() string {
	if label, ok := labels[m]; ok {
		return label
	}
	return string(m)
}
