package exam

// SampleExam is served when no exam data has been stored yet.
func SampleExam() (Exam, []Question) {
	e := Exam{
		ID:             "1",
		Slug:           "midterm-examination",
		Title:          "Midterm Examination",
		Description:    "Covers chapters 1-5 of the textbook",
		Subject:        "Mathematics",
		DurationMin:    90,
		TotalQuestions: 5,
		Status:         StatusActive,
		PassingScore:   60,
	}
	qs := []Question{
		{ID: "q1", Type: TypeMultipleChoice, Text: "What is the value of π (pi) rounded to two decimal places?",
			Options: []string{"3.10", "3.14", "3.16", "3.18"}, Answer: "3.14"},
		{ID: "q2", Type: TypeMultipleChoice, Text: "If f(x) = 2x² + 3x - 5, what is f(2)?",
			Options: []string{"7", "9", "11", "13"}, Answer: "9"},
		{ID: "q3", Type: TypeText, Text: "Explain the Pythagorean theorem and provide an example."},
		{ID: "q4", Type: TypeMultipleChoice, Text: "What is the derivative of x³?",
			Options: []string{"x²", "2x²", "3x²", "3x"}, Answer: "3x²"},
		{ID: "q5", Type: TypeText, Text: "Solve the system of equations: 2x + y = 7 and 3x - 2y = 1."},
	}
	for i := range qs {
		qs[i].ExamID = e.ID
		qs[i].Points = 1
		qs[i].Position = i
	}
	return e, qs
}
