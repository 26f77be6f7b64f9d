/*
Package hostmock provides a pretend host for waPC calls.

It lets adapter tests validate exactly what a component sends to the Tarmac
host without a real host running: routing (namespace, capability, function),
payload contents, scripted responses and failures.

Quick start

	m, _ := hostmock.New(hostmock.Config{
	  ExpectedNamespace:  "tarmac",
	  ExpectedCapability: "sql",
	  Handlers: map[string]hostmock.Handler{
	    "exec":  func(p []byte) ([]byte, error) { return execResponse, nil },
	    "query": func(p []byte) ([]byte, error) { return queryResponse, nil },
	  },
	})

	client, _ := host.NewClient(host.Config{HostCall: m.HostCall})

Behavior

  - If Fail is true and Error is set, HostCall returns that error.
  - If Fail is true and Error is nil, HostCall returns ErrOperationFailed.
  - Otherwise HostCall enforces ExpectedNamespace and ExpectedCapability, and
    then routes the call. With Handlers set, the function name selects the
    handler and unknown functions fail with ErrUnexpectedFunction. Without
    Handlers, ExpectedFunction is enforced, PayloadValidator runs and Response
    provides the return bytes.
  - Every call is recorded, including the error it produced. Calls returns a
    copy of the history.

Leave expectation fields blank when you want a wildcard; hostmock only
enforces values you set.
*/
package hostmock
