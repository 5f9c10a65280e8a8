// Package logger provides leveled logging for vaultkey commands and the
// crypto core.
//
// The logger supports multiple verbosity levels controlled by command-line
// flags. Output is formatted with colored semantic prefixes.
//
// # Verbosity Levels
//
//   - --verbose: Shows info messages
//   - --debug: Shows all messages including debug details
//
// Warnings, errors and security events are always shown.
//
// # Log Methods
//
//	Logger.Infof()     // Shown with --verbose or --debug
//	Logger.Debugf()    // Shown only with --debug
//	Logger.Warnf()     // Always shown
//	Logger.Errorf()    // Always shown
//	Logger.Securityf() // Always shown, used for rejected signatures
//
// Never pass key material or decrypted content to any log method.
//
// # Usage
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Encrypted %d invite keys", count)
//
// Tests use Discard() or set Out/Err to a buffer.
package logger
