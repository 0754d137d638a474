// Package hexloader downloads binary images to the Z80 board flash loader.
//
// The loader is started by a magic sentence sent at 8N1 and then speaks
// colon-hex records (see package hexrecord) in both directions. Every record the
// host sends is confirmed by the loader with a handshake record of type 0xAA
// carrying 0xA1.
//
// # Session
//
//	Host:   ..helloTeachZ80FlashLoader           (then 200ms pause, input flushed)
//	Host:   :01000000AAF065                      (welcome)
//	Loader: :01000000AAA1B4                      (within 200ms)
//	Host:   :10000000<16 bytes>CC                (data, address i*16)
//	Loader: :01000000AAA1B4                      (within 1s, after each record)
//	...
//	Host:   :00000001FF                          (end of file)
//	Loader: :01000000AAA1B4
//
// # Usage
//
//	session, err := link.Open(link.SerialOpener{}, "/dev/ttyUSB0", link.ApplicationMode(115200))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	client := hexloader.NewClient(session)
//	if err := client.Enter(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	err = client.Download(ctx, data)
package hexloader
