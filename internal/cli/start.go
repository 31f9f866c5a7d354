// start.go implements "transferd start": run one transfer job from the
// terminal, prompting for the password and, if the worker pauses, the OTP.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/redpay/transferd/internal/session"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a single transfer job",
	Long: `Run one transfer automation attempt. The account password is read
from the terminal (hidden), or from stdin when not attached to a TTY.
If the worker pauses for OTP, the code is prompted for and submitted
against the stored session in the same invocation.`,
	RunE: runStart,
}

var (
	bankFlag        string
	usernameFlag    string
	ibanFlag        string
	amountFlag      float64
	descriptionFlag string
	bankConfigFlag  string
)

func init() {
	startCmd.Flags().StringVar(&bankFlag, "bank", "", "Bank identifier")
	startCmd.Flags().StringVar(&usernameFlag, "username", "", "Online banking username")
	startCmd.Flags().StringVar(&ibanFlag, "iban", "", "Receiver IBAN (defaults to config receiver_iban)")
	startCmd.Flags().Float64Var(&amountFlag, "amount", 0, "Transfer amount")
	startCmd.Flags().StringVar(&descriptionFlag, "description", "", "Transfer description")
	startCmd.Flags().StringVar(&bankConfigFlag, "bank-config", "", "Path to the institution automation config JSON")
}

func runStart(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	defer app.Close()

	iban := ibanFlag
	if iban == "" {
		iban = app.Config.ReceiverIBAN
	}

	var bankConfig json.RawMessage
	if bankConfigFlag != "" {
		data, err := os.ReadFile(bankConfigFlag)
		if err != nil {
			return fmt.Errorf("reading bank config: %w", err)
		}
		bankConfig = data
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	payload := session.JobPayload{
		BankConfig: bankConfig,
		TransferData: session.TransferData{
			BankID:       bankFlag,
			Username:     usernameFlag,
			Password:     password,
			ReceiverIBAN: iban,
			Amount:       amountFlag,
			Description:  descriptionFlag,
		},
	}

	res := app.Orch.StartJob(cmd.Context(), payload)
	if !res.RequiresOTP {
		return printResult(res)
	}

	fmt.Printf("OTP required for session %s\n", res.SessionID)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		// No way to prompt; leave the session pending for "transferd otp".
		return printResult(res)
	}

	code, err := readLine("Enter OTP code: ")
	if err != nil {
		return err
	}

	return printResult(app.Orch.SubmitOTP(cmd.Context(), res.SessionID, code))
}

// readPassword reads the account password without echoing when stdin is a
// terminal, falling back to a plain line read otherwise.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(data), nil
	}
	return readLine("")
}

func readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(os.Stderr, prompt)
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
