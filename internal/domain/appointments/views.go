package appointments

import (
	"sort"
	"time"
)

// Vistas derivadas: computaciones puras sobre la colección cacheada,
// sin red propia.
//
// Ojo con la asimetría (heredada a propósito del producto):
// - Upcoming corta en el inicio del día local y excluye cancelados.
// - Past corta en el instante exacto y NO excluye cancelados.

// UpcomingOf filtra turnos con fecha >= inicio de hoy (hora local) y
// estado distinto de cancelado, ordenados ascendente por fecha.
func UpcomingOf(appts []Appointment, now time.Time) []Appointment {
	start := startOfDay(now)
	out := make([]Appointment, 0)
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		if a.AppointmentDate.Before(start) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentDate.Before(out[j].AppointmentDate)
	})
	return out
}

// PastOf filtra turnos con fecha < ahora (instante exacto), ordenados
// descendente. Incluye cancelados.
func PastOf(appts []Appointment, now time.Time) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range appts {
		if !a.AppointmentDate.Before(now) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[j].AppointmentDate.Before(out[i].AppointmentDate)
	})
	return out
}

// TodayOf filtra turnos del mismo día calendario local que now.
func TodayOf(appts []Appointment, now time.Time) []Appointment {
	y, m, d := now.Date()
	out := make([]Appointment, 0)
	for _, a := range appts {
		ay, am, ad := a.AppointmentDate.In(now.Location()).Date()
		if ay == y && am == m && ad == d {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Upcoming() []Appointment {
	return UpcomingOf(s.All(), s.now())
}

func (s *Store) Past() []Appointment {
	return PastOf(s.All(), s.now())
}

func (s *Store) Today() []Appointment {
	return TodayOf(s.All(), s.now())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
