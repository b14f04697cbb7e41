package local

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
)

func TestIsNoReplySender(t *testing.T) {
	cases := []struct {
		sender string
		want   bool
	}{
		{"no-reply@example.com", true},
		{"NoReply@Example.com", true},
		{"notifications@github.com", true},
		{"mailer-daemon@mx.example.com", true},
		{"alice@example.com", false},
		{"bob <bob@company.org>", false},
	}
	for _, tc := range cases {
		if got := IsNoReplySender(tc.sender); got != tc.want {
			t.Errorf("IsNoReplySender(%q) = %v, want %v", tc.sender, got, tc.want)
		}
	}
}

func TestClassify_NoReplySender(t *testing.T) {
	result := Classify(mailbox.RawMessage{
		ID:      "m1",
		Sender:  "noreply@service.io",
		Subject: "Your account statement",
	}, "Sam")

	if result.Category != models.CategoryNewsletter {
		t.Errorf("Category = %v, want Newsletter", result.Category)
	}
	if result.Priority != models.PriorityLow {
		t.Errorf("Priority = %v, want Low", result.Priority)
	}
	if result.NeedsReply {
		t.Error("NeedsReply = true, want false for no-reply sender")
	}
	if !result.IsFallback {
		t.Error("IsFallback = false, want true")
	}
}

func TestClassify_SpamKeywordBeatsNewsletterKeyword(t *testing.T) {
	result := Classify(mailbox.RawMessage{
		ID:      "m2",
		Sender:  "someone@example.com",
		Subject: "You have won our newsletter lottery",
	}, "Sam")

	if result.Category != models.CategorySpam {
		t.Errorf("Category = %v, want Spam", result.Category)
	}
}

func TestClassify_NewsletterKeyword(t *testing.T) {
	result := Classify(mailbox.RawMessage{
		ID:      "m3",
		Sender:  "editor@journal.com",
		Subject: "Weekly update: issue 42",
	}, "Sam")

	if result.Category != models.CategoryNewsletter {
		t.Errorf("Category = %v, want Newsletter", result.Category)
	}
	if result.NeedsReply {
		t.Error("NeedsReply = true, want false for newsletter")
	}
}

func TestClassify_DefaultDraftsAcknowledgment(t *testing.T) {
	result := Classify(mailbox.RawMessage{
		ID:      "m4",
		Sender:  "Carol <carol@client.com>",
		Subject: "Question about the invoice",
	}, "Sam")

	if result.Category != models.CategoryPersonal {
		t.Errorf("Category = %v, want Personal", result.Category)
	}
	if result.Priority != models.PriorityMedium {
		t.Errorf("Priority = %v, want Medium", result.Priority)
	}
	if !result.NeedsReply {
		t.Error("NeedsReply = false, want true")
	}
	if !strings.Contains(result.Reply, "Carol") {
		t.Errorf("reply does not address the sender by name: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "Question about the invoice") {
		t.Errorf("reply does not mention the subject: %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "Sam") {
		t.Errorf("reply is not signed with the user name: %q", result.Reply)
	}
}

func TestProperty_ClassifyAlwaysProducesValidFallback(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("every_result_is_fallback_with_valid_category", prop.ForAll(
		func(sender, subject, body string) bool {
			result := Classify(mailbox.RawMessage{
				ID:      "gen",
				Sender:  sender,
				Subject: subject,
				Body:    body,
			}, "Sam")

			if !result.IsFallback {
				return false
			}
			if !result.Category.IsValid() || !result.Priority.IsValid() {
				return false
			}
			// A fallback result always carries some reply text, even if
			// it is just the no-reply marker
			return result.Reply != ""
		},
		gen.AnyString(),
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("no_reply_senders_never_need_reply", prop.ForAll(
		func(prefix string, subject string) bool {
			sender := prefix + "no-reply@auto.example.com"
			result := Classify(mailbox.RawMessage{Sender: sender, Subject: subject}, "Sam")
			return !result.NeedsReply && result.Category == models.CategoryNewsletter
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
