package assistant

import (
	"strings"
	"time"
)

const disclaimer = "This is general information, not a diagnosis. Please consult a doctor before taking any medication."

// Medication is one suggested over-the-counter option.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Notes     string `json:"notes,omitempty"`
}

// MedicationAdvice answers a medication request.
type MedicationAdvice struct {
	Medications []Medication `json:"medications"`
	Precautions []string     `json:"precautions"`
	SeeDoctorIf []string     `json:"seeDoctorIf"`
	Disclaimer  string       `json:"disclaimer"`
	Source      string       `json:"source"`
}

// Tip is one health tip.
type Tip struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

type cannedRemedy struct {
	keywords    []string
	medications []Medication
	precautions []string
}

var cannedRemedies = []cannedRemedy{
	{
		keywords: []string{"fever", "temperature", "chills"},
		medications: []Medication{
			{Name: "Paracetamol", Dosage: "500 mg", Frequency: "every 6 hours as needed", Notes: "do not exceed 4 g per day"},
		},
		precautions: []string{"Drink plenty of fluids", "Rest and monitor your temperature"},
	},
	{
		keywords: []string{"headache", "migraine", "pain"},
		medications: []Medication{
			{Name: "Paracetamol", Dosage: "500 mg", Frequency: "every 6 hours as needed"},
			{Name: "Ibuprofen", Dosage: "200-400 mg", Frequency: "every 8 hours with food", Notes: "avoid with stomach ulcers"},
		},
		precautions: []string{"Limit screen time", "Stay hydrated"},
	},
	{
		keywords: []string{"cough", "cold", "sore throat", "congestion"},
		medications: []Medication{
			{Name: "Cetirizine", Dosage: "10 mg", Frequency: "once daily", Notes: "may cause drowsiness"},
			{Name: "Honey and warm water", Dosage: "1 teaspoon", Frequency: "two to three times daily"},
		},
		precautions: []string{"Gargle with warm salt water", "Avoid cold drinks"},
	},
	{
		keywords: []string{"acidity", "heartburn", "indigestion", "stomach"},
		medications: []Medication{
			{Name: "Antacid suspension", Dosage: "10 ml", Frequency: "after meals"},
		},
		precautions: []string{"Eat smaller meals", "Avoid spicy food late at night"},
	},
	{
		keywords: []string{"allergy", "sneezing", "itching", "rash"},
		medications: []Medication{
			{Name: "Cetirizine", Dosage: "10 mg", Frequency: "once daily at night"},
		},
		precautions: []string{"Identify and avoid the trigger"},
	},
}

var defaultSeeDoctor = []string{
	"Symptoms last longer than three days",
	"You have difficulty breathing or chest pain",
	"A fever rises above 103°F (39.4°C)",
}

var cannedTips = []Tip{
	{Category: "hydration", Title: "Drink water through the day", Body: "Aim for eight glasses and more in hot weather or after exercise."},
	{Category: "sleep", Title: "Keep a sleep schedule", Body: "Going to bed and waking at the same time helps you get 7-8 hours of rest."},
	{Category: "activity", Title: "Move for 30 minutes", Body: "A brisk walk most days lowers blood pressure and improves mood."},
	{Category: "nutrition", Title: "Fill half your plate with vegetables", Body: "Fibre and micronutrients keep digestion and immunity healthy."},
	{Category: "screening", Title: "Book an annual check-up", Body: "Routine blood work catches diabetes and thyroid issues early."},
	{Category: "mental health", Title: "Take short breaks", Body: "Five minutes away from a screen every hour reduces eye strain and stress."},
	{Category: "hygiene", Title: "Wash hands before meals", Body: "Twenty seconds with soap prevents most common infections."},
}

// cannedMedications matches symptoms against the remedy table. Allergy mentions drop
// matching medications.
func cannedMedications(req MedicationRequest) *MedicationAdvice {
	symptoms := strings.ToLower(req.Symptoms)
	allergies := strings.ToLower(req.Allergies)

	advice := &MedicationAdvice{
		Medications: []Medication{},
		Precautions: []string{},
		SeeDoctorIf: append([]string(nil), defaultSeeDoctor...),
		Disclaimer:  disclaimer,
		Source:      "canned",
	}
	seen := map[string]bool{}
	for _, remedy := range cannedRemedies {
		if !containsAny(symptoms, remedy.keywords) {
			continue
		}
		for _, med := range remedy.medications {
			name := strings.ToLower(med.Name)
			if seen[name] || (allergies != "" && strings.Contains(allergies, name)) {
				continue
			}
			seen[name] = true
			advice.Medications = append(advice.Medications, med)
		}
		advice.Precautions = append(advice.Precautions, remedy.precautions...)
	}
	if req.Age > 0 && req.Age < 12 {
		advice.Precautions = append(advice.Precautions, "Children need weight-based doses; confirm with a paediatrician")
	}
	if len(advice.Medications) == 0 {
		advice.Precautions = append(advice.Precautions, "No over-the-counter suggestion matches these symptoms; book a consultation")
	}
	return advice
}

func cannedChatReply(message string) string {
	msg := strings.ToLower(message)
	switch {
	case containsAny(msg, []string{"book", "appointment", "slot"}):
		return "You can book an appointment from a doctor's profile page. Pick a day and a free time slot, then complete the payment to confirm it."
	case containsAny(msg, []string{"cancel", "refund"}):
		return "Open My Appointments and choose Cancel. Unpaid bookings are released automatically after 24 hours."
	case containsAny(msg, []string{"emergency", "chest pain", "can't breathe", "unconscious"}):
		return "This sounds urgent. Please call your local emergency number or go to the nearest hospital right away."
	case containsAny(msg, []string{"fever", "cough", "headache", "cold"}):
		return "Rest, fluids and paracetamol help with most mild symptoms. If they last more than three days, book a general physician."
	default:
		return "I can help you find a doctor, book or cancel appointments, and share general health information. What would you like to do?"
	}
}

// dailyTips rotates through the tip list by day of year.
func dailyTips(now time.Time, n int) []Tip {
	if n <= 0 || n > len(cannedTips) {
		n = len(cannedTips)
	}
	start := now.YearDay() % len(cannedTips)
	out := make([]Tip, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, cannedTips[(start+i)%len(cannedTips)])
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
