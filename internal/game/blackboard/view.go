package blackboard

// View is a read-only snapshot of a faction's board, captured once per decision cycle.
//
// The zero View is valid but reports zero confidence and team HP, which guards
// read as a collapsed team. Use NeutralView when no board is available.
type View struct {
	Faction         string
	SharedTarget    string
	HasSharedTarget bool
	TeamAverageHP   float64
	Confidence      float64

	reserved map[slot]string
}

// NeutralView returns a View with neutral team values, used when no board is available.
func NeutralView(faction string) View {
	return View{Faction: faction, TeamAverageHP: 0.5, Confidence: 0.5}
}

// ReservedByOther reports whether (kind, key) is held by a unit other than self.
func (v View) ReservedByOther(kind ReservationKind, key, self string) bool {
	holder, ok := v.reserved[slot{kind: kind, key: key}]
	return ok && holder != self
}

// Reservations returns the number of reservations visible in the snapshot.
func (v View) Reservations() int { return len(v.reserved) }
