package object

import "github.com/jixiang52002/magenta/status"

// DataPipeProducerDispatcher is the producer-side facade over a
// shared DataPipe.
type DataPipeProducerDispatcher struct {
	base
	pipe *DataPipe
}

// DataPipeConsumerDispatcher is the consumer-side facade.
type DataPipeConsumerDispatcher struct {
	base
	pipe *DataPipe
}

// CreateDataPipe builds a ring of capacity elements, each elemSize
// bytes (elemSize == 1 for a byte-oriented pipe), and returns its
// producer and consumer dispatchers.
func CreateDataPipe(elemSize, capacity int) (*DataPipeProducerDispatcher, *DataPipeConsumerDispatcher) {
	dp := newDataPipe(elemSize, capacity)

	prod := &DataPipeProducerDispatcher{pipe: dp}
	prod.base = newBase(TypeDataPipeProducer, dp.producerTracker)

	cons := &DataPipeConsumerDispatcher{pipe: dp}
	cons.base = newBase(TypeDataPipeConsumer, dp.consumerTracker)

	return prod, cons
}

func (p *DataPipeProducerDispatcher) OnClose() { p.pipe.closeProducer() }
func (c *DataPipeConsumerDispatcher) OnClose() { c.pipe.closeConsumer() }

// Write forwards to the shared DataPipe's producer path. allOrNone
// matches spec.md 4.8's MAY_DISCARD-free write mode: if set, a write
// that cannot be fully satisfied writes nothing at all.
func (p *DataPipeProducerDispatcher) Write(buf []byte, n *int, allOrNone bool) status.Status {
	return p.pipe.Write(buf, n, allOrNone)
}

func (p *DataPipeProducerDispatcher) BeginWrite() ([]byte, status.Status) {
	return p.pipe.BeginWrite()
}

func (p *DataPipeProducerDispatcher) EndWrite(consumed int) status.Status {
	return p.pipe.EndWrite(consumed)
}

// Read forwards to the shared DataPipe's consumer path. discard
// drops the bytes read instead of returning them; peek reads without
// advancing the consumer offset at all. Per spec.md 4.8's two-phase
// and one-shot read variants.
func (c *DataPipeConsumerDispatcher) Read(buf []byte, n *int, allOrNone, discard, peek bool) status.Status {
	return c.pipe.Read(buf, n, allOrNone, discard, peek)
}

func (c *DataPipeConsumerDispatcher) BeginRead() ([]byte, status.Status) {
	return c.pipe.BeginRead()
}

func (c *DataPipeConsumerDispatcher) EndRead(consumed int) status.Status {
	return c.pipe.EndRead(consumed)
}
