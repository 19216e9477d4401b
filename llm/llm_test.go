package llm

import "testing"

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{
			name: "audio_and_text",
			req: Request{
				Model: "gemini-1.5-pro",
				Parts: []Part{DataPart([]byte("RIFF"), "audio/wav"), TextPart("transcribe")},
			},
		},
		{
			name:    "missing_model",
			req:     Request{Parts: []Part{TextPart("hi")}},
			wantErr: true,
		},
		{
			name:    "no_parts",
			req:     Request{Model: "m"},
			wantErr: true,
		},
		{
			name:    "data_without_mime",
			req:     Request{Model: "m", Parts: []Part{DataPart([]byte{1}, "")}},
			wantErr: true,
		},
		{
			name:    "blank_text",
			req:     Request{Model: "m", Parts: []Part{TextPart("  ")}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPartIsData(t *testing.T) {
	if TextPart("x").IsData() {
		t.Fatalf("text part reported as data")
	}
	if !DataPart([]byte{0}, "audio/wav").IsData() {
		t.Fatalf("data part not reported as data")
	}
}
