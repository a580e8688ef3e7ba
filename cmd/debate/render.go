package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/suPer8Hu/ai-debate/internal/activity"
	"github.com/suPer8Hu/ai-debate/internal/conversation"
	"github.com/suPer8Hu/ai-debate/internal/debate"
	"github.com/suPer8Hu/ai-debate/internal/gateway"
	"github.com/suPer8Hu/ai-debate/internal/usage"
)

func renderNewSession(w io.Writer, res *debate.NewSessionResult) {
	fmt.Fprintf(w, "Session %s with %s\n", res.SessionID, strings.Join(res.Participants, ", "))
	if len(res.Rejected) > 0 {
		fmt.Fprintf(w, "Skipped (not on your tier): %s\n", strings.Join(res.Rejected, ", "))
	}
}

func renderResponses(w io.Writer, rs []debate.ParticipantResponse) {
	for _, r := range rs {
		fmt.Fprintf(w, "== %s ==\n%s\n", r.Model, strings.TrimSpace(r.Message.Content))
		if len(r.Message.KeyTakeaways) > 0 {
			fmt.Fprintln(w, "Takeaways:")
			for _, t := range r.Message.KeyTakeaways {
				fmt.Fprintf(w, "  * %s\n", t)
			}
		}
		fmt.Fprintln(w)
	}
}

func renderTranscript(w io.Writer, sess *conversation.Session) {
	fmt.Fprintf(w, "Session %s (%s)\n\n", sess.ID, strings.Join(sess.Participants, ", "))
	for _, m := range sess.Messages {
		who := "you"
		if m.Role == conversation.RoleAssistant {
			who = m.AIName
		}
		fmt.Fprintf(w, "[%s] %s:\n%s\n\n", m.Timestamp.Local().Format("2006-01-02 15:04"), who, strings.TrimSpace(m.Content))
	}
}

func renderHistory(w io.Writer, list []gateway.SessionSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No sessions yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tLAST ACTIVE")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\n", s.SessionID, s.LastActive.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func renderCheckout(w io.Writer, co *gateway.Checkout) {
	if co.URL != "" {
		fmt.Fprintf(w, "Complete the payment at:\n  %s\n", co.URL)
	} else {
		fmt.Fprintf(w, "Checkout %s created; complete it with your payment provider.\n", co.ID)
	}
	fmt.Fprintln(w, "then run `debate confirm-upgrade`.")
}

func renderDigest(w io.Writer, d *gateway.Digest) {
	fmt.Fprintf(w, "Daily digest %s\n%s\n", d.Date, d.Summary)
	for _, h := range d.Highlights {
		fmt.Fprintf(w, "  * %s\n", h)
	}
}

func renderUsage(w io.Writer, c usage.Counters, l usage.Limits) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Tier\t%s\n", c.CurrentTier)
	fmt.Fprintf(tw, "Sessions\t%d / %d\n", c.SessionsCreated, l.SessionLimit)
	fmt.Fprintf(tw, "Messages\t%d / %d\n", c.MessagesSent, l.MessageLimit)
	fmt.Fprintf(tw, "Models\t%s\n", strings.Join(l.AllowedModels, ", "))
	_ = tw.Flush()
}

func renderActivity(w io.Writer, userKey string, totals map[activity.Type]activity.Total) {
	if len(totals) == 0 {
		fmt.Fprintf(w, "No activity recorded for %s.\n", userKey)
		return
	}
	types := make([]string, 0, len(totals))
	for t := range totals {
		types = append(types, string(t))
	}
	sort.Strings(types)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tEVENTS\tCOUNT")
	for _, t := range types {
		tot := totals[activity.Type(t)]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t, tot.Events, tot.Count)
	}
	_ = tw.Flush()
}

// describe turns the errors users can act on into advice.
func describe(err error) string {
	var upgrade *debate.UpgradeRequiredError
	switch {
	case errors.As(err, &upgrade):
		return fmt.Sprintf("%s. Run `debate upgrade pro` to raise your limits.", upgrade.Error())
	case errors.Is(err, debate.ErrNotSignedIn):
		return "not signed in. Run `debate login --email you@example.com`."
	case errors.Is(err, gateway.ErrAuth):
		return fmt.Sprintf("%v. Sign in again with `debate login`.", err)
	case errors.Is(err, gateway.ErrNetwork):
		return fmt.Sprintf("%v. Is the backend running?", err)
	default:
		return err.Error()
	}
}
