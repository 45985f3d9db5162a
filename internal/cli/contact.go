// internal/cli/contact.go
package cli

import (
	stderrors "errors"

	"github.com/spf13/cobra"

	"loangenius/internal/common/errors"
	"loangenius/internal/loan/contact"
	"loangenius/internal/loan/validation"
)

func newContactCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "contact",
		Short: "Send a message to the LoanGenius team",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := st.app
			in, err := askContact(app.Prompt)
			if err != nil {
				return err
			}

			repo, err := app.OpenContacts(cmd.Context())
			if err != nil {
				return err
			}
			msg, err := repo.Submit(cmd.Context(), in)
			if err != nil {
				if errors.HasCode(err, errors.ErrCodeValidationFailed) {
					app.printf("%s\n", errors.UserMessage(err))
				}
				return err
			}
			app.printf("Thanks %s, we'll get back to you soon. (ref %s)\n", msg.Name, msg.ID)
			return nil
		},
	}
}

func askContact(p Prompter) (contact.Input, error) {
	var in contact.Input
	fields := []struct {
		label string
		dst   *string
		check func(string) string
	}{
		{"Name", &in.Name, func(s string) string { return contact.Validate(contact.Input{Name: s})["name"] }},
		{"Email", &in.Email, validation.ValidateEmail},
		{"Phone", &in.Phone, func(s string) string { _, msg := validation.NormalizePhone(s); return msg }},
		{"Message", &in.Message, func(s string) string { return contact.Validate(contact.Input{Message: s})["message"] }},
	}

	for _, f := range fields {
		check := f.check
		v, err := p.Input(f.label, "", func(s string) error {
			if msg := check(s); msg != "" {
				return stderrors.New(msg)
			}
			return nil
		})
		if err != nil {
			return contact.Input{}, err
		}
		*f.dst = v
	}
	return in, nil
}
