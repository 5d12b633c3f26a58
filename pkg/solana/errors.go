package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey names a runtime transaction error.
//
// Reference: https://github.com/solana-labs/solana/blob/master/sdk/src/transaction/error.rs
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse            TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorDuplicateSignature      TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"
	TransactionErrorSignatureFailure        TransactionErrorKey = "SignatureFailure"
	TransactionErrorAlreadyProcessed        TransactionErrorKey = "AlreadyProcessed"
)

// InstructionErrorKey names a built-in instruction error.
//
// Reference: https://github.com/solana-labs/solana/blob/master/sdk/program/src/instruction.rs
type InstructionErrorKey string

const (
	InstructionErrorGenericError              InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
)

// CustomError is the numeric error raised by a program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %#x", int(c))
}

// InstructionError is the failure of the instruction at Index. Err is either
// a CustomError or an error named by an InstructionErrorKey.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch i.Err.(type) {
	case nil:
		return ""
	case CustomError:
		return InstructionErrorCustom
	default:
		return InstructionErrorKey(i.Err.Error())
	}
}

func (i InstructionError) CustomError() *CustomError {
	if custom, ok := i.Err.(CustomError); ok {
		return &custom
	}
	return nil
}

// raw renders the error the way the RPC encodes it.
func (i InstructionError) raw() interface{} {
	if custom, ok := i.Err.(CustomError); ok {
		return []interface{}{float64(i.Index), map[string]interface{}{string(InstructionErrorCustom): float64(custom)}}
	}
	return []interface{}{float64(i.Index), i.Err.Error()}
}

// TransactionError is a transaction level failure reported by the RPC, either
// from preflight simulation or from a confirmed transaction's status.
type TransactionError struct {
	key         TransactionErrorKey
	instruction *InstructionError
	raw         interface{}

	// Logs are the program logs captured during preflight simulation, if
	// the node returned any.
	Logs []string
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{key: key, raw: string(key)}
}

func TransactionErrorFromInstructionError(err *InstructionError) (*TransactionError, error) {
	if err == nil || err.Err == nil {
		return nil, errors.New("instruction error is required")
	}

	return &TransactionError{
		key:         TransactionErrorInstructionError,
		instruction: err,
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): err.raw(),
		},
	}, nil
}

func (t TransactionError) Error() string {
	if t.instruction != nil {
		return t.instruction.Error()
	}
	return string(t.key)
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instruction
}

// ParseRPCError extracts the transaction error from a failed preflight
// simulation. A nil error is returned when err carries none.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	raw, ok := data["err"]
	if !ok || raw == nil {
		return nil, nil
	}

	txErr, parseErr := ParseTransactionError(raw)
	if txErr != nil {
		txErr.Logs = stringsOf(data["logs"])
	}
	return txErr, parseErr
}

// ParseTransactionError parses the "err" value of transaction statuses and
// simulation results. An unrecognized shape still yields a usable error
// alongside the parse failure.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &TransactionError{key: TransactionErrorKey(value), raw: raw}, nil
	case map[string]interface{}:
		key, inner, err := singleEntry(value)
		if err != nil {
			return &TransactionError{key: "UnhandledError", raw: raw}, err
		}
		if key != string(TransactionErrorInstructionError) {
			return &TransactionError{key: TransactionErrorKey(key), raw: raw}, nil
		}

		instruction, err := parseInstructionError(inner)
		if err != nil {
			return &TransactionError{key: "UnhandledError", raw: raw}, errors.Wrap(err, "failed to parse instruction error")
		}
		return &TransactionError{key: TransactionErrorInstructionError, instruction: instruction, raw: raw}, nil
	default:
		return nil, errors.Errorf("unhandled error type %T", raw)
	}
}

// parseInstructionError parses the [index, error] tuple of an
// InstructionError.
func parseInstructionError(v interface{}) (*InstructionError, error) {
	tuple, ok := v.([]interface{})
	if !ok || len(tuple) != 2 {
		return nil, errors.New("expected [index, error] tuple")
	}

	index, err := parseJSONNumber(tuple[0])
	if err != nil {
		return nil, err
	}

	switch value := tuple[1].(type) {
	case string:
		return &InstructionError{Index: index, Err: errors.New(value)}, nil
	case map[string]interface{}:
		key, inner, err := singleEntry(value)
		if err != nil {
			return nil, err
		}
		if key != string(InstructionErrorCustom) {
			return &InstructionError{Index: index, Err: errors.New(key)}, nil
		}

		code, err := parseJSONNumber(inner)
		if err != nil {
			return nil, errors.Wrap(err, "invalid custom error code")
		}
		return &InstructionError{Index: index, Err: CustomError(code)}, nil
	default:
		return nil, errors.Errorf("unhandled instruction error type %T", value)
	}
}

func singleEntry(m map[string]interface{}) (string, interface{}, error) {
	if len(m) != 1 {
		return "", nil, errors.Errorf("expected a single entry, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", nil, nil
}

func stringsOf(v interface{}) []string {
	values, ok := v.([]interface{})
	if !ok {
		return nil
	}

	result := make([]string, 0, len(values))
	for _, value := range values {
		if s, ok := value.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func parseJSONNumber(v interface{}) (int, error) {
	switch value := v.(type) {
	case float64:
		return int(value), nil
	case json.Number:
		n, err := value.Int64()
		return int(n), errors.Wrapf(err, "non integer value %v", v)
	case string:
		n, err := strconv.ParseInt(value, 10, 64)
		return int(n), errors.Wrapf(err, "non numeric value %v", v)
	default:
		return 0, errors.Errorf("non numeric value %v", v)
	}
}
