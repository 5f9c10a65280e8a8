package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"github.com/PolarWolf314/vaultkey/internal/configs"
	kerrors "github.com/PolarWolf314/vaultkey/internal/errors"
	"github.com/PolarWolf314/vaultkey/internal/ui"
	"github.com/PolarWolf314/vaultkey/internal/utils"
	"github.com/PolarWolf314/vaultkey/internal/workflows"
)

// startSpinner creates and starts a spinner with the given message when not
// in verbose or debug mode. The returned cleanup prints FinalMSG with a
// trailing newline.
func startSpinner(message string) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !verbose && !debug
	if quiet {
		s.Start()
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stdout)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}
		if quiet {
			s.Stop()
		}
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}
	return s, cleanup
}

// sessionOptions prompts for the passphrase unless VAULTKEY_PASSPHRASE is
// set.
func sessionOptions() (workflows.SessionOptions, error) {
	pass, err := utils.ResolvePassphrase("Passphrase: ", configs.EnvPassphrase)
	if err != nil {
		return workflows.SessionOptions{}, err
	}
	return workflows.SessionOptions{Passphrase: pass, Verbose: verbose, Debug: debug}, nil
}

func failure(msg string) string {
	return ui.Error.Sprint("✗") + " " + msg
}

func hint(msg string) string {
	return "\n" + ui.Info.Sprint("→") + " " + msg
}

// formatError renders err for the user. Security failures are rendered
// distinctly from unavailable content.
func formatError(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrWorkspaceNotInitialized):
		return failure("vaultkey has not been initialized") +
			hint("Run "+ui.Code.Sprint("vaultkey init")+" first")

	case errors.Is(err, kerrors.ErrWorkspaceAlreadyInitialized):
		return failure("vaultkey has already been initialized") +
			hint("Run "+ui.Code.Sprint("vaultkey vault create")+" to create a vault")

	case errors.Is(err, kerrors.ErrUserNotConfigured):
		return failure("You have no address key") +
			hint("Run "+ui.Code.Sprint("vaultkey keys generate")+" first")

	case errors.Is(err, kerrors.ErrKeyUnlock):
		return failure("Could not unlock your address key") +
			hint("Check your passphrase")

	case errors.Is(err, kerrors.ErrStaleRevision):
		return failure("The item was changed by someone else while you were editing it") +
			hint("Run the command again to apply your change to the latest revision")

	case errors.Is(err, kerrors.ErrNoUsableKey):
		return failure("You have no key for this vault") +
			hint("Ask a member to run "+ui.Code.Sprint("vaultkey invite encrypt"))

	case errors.Is(err, kerrors.ErrInviteNotFound):
		return failure("Invite not found or not addressed to you")

	case kerrors.Classify(err) == kerrors.KindSecurity:
		return ui.Security.Sprint("Security warning") + " " + err.Error() +
			hint("This has been recorded in the audit log. Run "+ui.Code.Sprint("vaultkey log --operation security_event"))

	default:
		return failure(err.Error())
	}
}

// isUnexpectedError returns true if the error should cause a non-zero exit
// even after being printed.
func isUnexpectedError(err error) bool {
	switch {
	case errors.Is(err, kerrors.ErrWorkspaceNotInitialized),
		errors.Is(err, kerrors.ErrWorkspaceAlreadyInitialized),
		errors.Is(err, kerrors.ErrUserNotConfigured),
		errors.Is(err, kerrors.ErrInvalidRequest):
		return false
	default:
		return true
	}
}

// reportedError is an error that has already been shown to the user.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported reports whether err has already been printed by a command.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// finish reports err through the spinner. It returns err when the command
// should exit non-zero.
func finish(s *spinner.Spinner, err error) error {
	s.FinalMSG = formatError(err)
	if isUnexpectedError(err) {
		return reportedError{err}
	}
	return nil
}
