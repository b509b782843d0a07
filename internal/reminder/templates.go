package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/citasalud/citasalud-platform/internal/store"
)

// madridTime formats an appointment instant for patient-facing messages.
// Appointments are stored in UTC; patients read Europe/Madrid wall time.
func madridTime(t time.Time) (string, string) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return local.Format("02/01/2006"), local.Format("15:04")
}

// WhatsAppMessage composes the reminder text for one WhatsApp window from
// current patient and appointment data.
func WhatsAppMessage(appt store.Appointment, kind store.ReminderKind, clinicName string) string {
	name := strings.TrimSpace(appt.PatientName)
	if name == "" {
		name = "paciente"
	}
	date, hour := madridTime(appt.ScheduledAt)

	detail := appt.Specialty
	if appt.Doctor != "" {
		if detail != "" {
			detail = fmt.Sprintf("%s con %s", detail, appt.Doctor)
		} else {
			detail = fmt.Sprintf("con %s", appt.Doctor)
		}
	}
	if detail == "" {
		detail = "su consulta"
	}

	switch kind {
	case store.ReminderWhatsApp72h:
		return fmt.Sprintf(
			"Hola %s, le recordamos su cita de %s el %s a las %s en %s. Responda CONFIRMAR para confirmar o CANCELAR si no puede asistir.",
			name, detail, date, hour, clinicName,
		)
	case store.ReminderWhatsApp48h:
		return fmt.Sprintf(
			"Hola %s, su cita de %s es pasado mañana, el %s a las %s en %s. ¿Podemos contar con usted? Responda CONFIRMAR o CANCELAR.",
			name, detail, date, hour, clinicName,
		)
	case store.ReminderWhatsApp24h:
		return fmt.Sprintf(
			"Hola %s, mañana %s a las %s tiene su cita de %s en %s. Si no puede asistir, responda CANCELAR y buscaremos otra fecha.",
			name, date, hour, detail, clinicName,
		)
	default:
		return fmt.Sprintf(
			"Hola %s, le recordamos su cita el %s a las %s en %s.",
			name, date, hour, clinicName,
		)
	}
}

// VoiceGreeting composes the opening line the voice agent reads before
// asking the patient to confirm, cancel, or reschedule.
func VoiceGreeting(appt store.Appointment, clinicName string) string {
	name := strings.TrimSpace(appt.PatientName)
	if name == "" {
		name = "paciente"
	}
	date, hour := madridTime(appt.ScheduledAt)
	return fmt.Sprintf(
		"Hola %s, le llamamos de %s para recordarle su cita el %s a las %s. ¿Desea confirmarla, cancelarla o cambiarla de fecha?",
		name, clinicName, date, hour,
	)
}
