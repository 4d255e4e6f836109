// Package platform contains the capabilities the monitor core calls into but does not own:
// display power, storage of transferred files, Wi-Fi selection and local address lookup.
//
// Each capability is an interface with a no-op or generic implementation, so the core runs
// unchanged on a desktop, in tests and on the embedded display.
package platform
