package main

// Crown HID report layout. The crown speaks HID++ long reports (0x11) on the
// keyboard's hidraw node; modifier state arrives on the plain keyboard
// reports (0x20 vendor / 0x01 boot).
const (
	reportIDLong  = 0x11 // HID++ long report (crown feature traffic)
	reportIDShort = 0x10 // HID++ short report (connect notifications)
	reportIDVndKB = 0x20 // vendor keyboard report carrying modifier byte
	reportIDBoot  = 0x01 // boot keyboard report, modifiers in byte 1

	crownFeatureIdx = 0x12 // feature index of the crown on this device

	// Byte offsets within a 0x11 crown report.
	offRotFlag   = 4  // non-zero while the crown is rotating
	offRotAmount = 5  // signed free-wheel movement per polling interval
	offRotNotch  = 6  // signed ratchet detents per polling interval
	offTouch     = 8  // 0x01 touch, 0x03 leave
	offButton    = 10 // 0x01 press, 0x05 release; also pressed flag on rotation

	buttonPressVal   = 0x01
	buttonReleaseVal = 0x05
	touchVal         = 0x01
	leaveVal         = 0x03

	connectFnVal = 0x41 // b[2] of a 0x10 report when the device (re)connects
)

// Modifier bits as reported in the keyboard modifier byte. Left and right
// variants share a nibble pattern, so each mask covers both.
const (
	modMaskCtrl  = 0x11
	modMaskShift = 0x22
	modMaskAlt   = 0x44
)

// Crown device identity (Logitech Craft keyboard).
const (
	defaultVendorID  = 0x046D
	defaultProductID = 0x4066
)

// Daemon defaults.
const (
	defaultLongPressMS       = 500
	defaultShutdownGraceMS   = 3000
	defaultReconnectAttempts = 5
	defaultReconnectWaitMS   = 10000

	// rawReportMax is sized for the longest HID++ report plus slack.
	rawReportMax = 64

	// reportChanBuf absorbs report bursts while an action is being launched.
	reportChanBuf = 64
)
