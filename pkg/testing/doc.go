// Package testing provides a testing SDK for using serialmock in Go tests.
//
// A Device is an emulated serial device listening on a local TCP port. Code
// under test connects to Device.Start's address the way it would open a
// serial-over-TCP bridge.
//
// # Basic Usage
//
//	func TestMeterReader(t *testing.T) {
//	    dev := serialtest.New(t)
//
//	    dev.On("0x10 0x58 $1 0x5B 0x16").
//	        Reply("0x68 0x03 0x03 0x68 0x08 $1 0x00 @sum[4..] 0x16")
//
//	    addr := dev.Start()
//
//	    reading, err := meter.Read(addr)
//	    ...
//	    dev.AssertAsked(t, "0x10 0x58 $1 0x5B 0x16")
//	}
//
// Asks and answers use the repeat-file syntax: 0xHH literals, $N variables
// and @sum, @crc8, @crc16 or @rand functions. Contiguous hex ("1058FC")
// works too.
//
// # Pair Options
//
//	dev.On("0x01").Times(1).Reply("0xAA")          // answer once, then stay silent
//	dev.On("0x02").WithDelay(50 * time.Millisecond).Reply("0xBB")
//
// # Loading Repeat Files
//
//	dev.LoadFile("testdata/meter.txt")
//
// # Assertions
//
//	dev.AssertAsked(t, "0x10 0x58 $1 0x5B 0x16")
//	dev.AssertAskedTimes(t, "0x01", 2)
//	dev.AssertNotAsked(t, "0x02")
//
//	for _, f := range dev.Frames() {
//	    f.AssertAnswered(t)
//	}
//
// Start registers Stop with t.Cleanup. Reset clears pairs and the frame log
// between scenarios.
package testing
