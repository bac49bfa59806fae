package exception

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/jixiang52002/magenta/status"
)

func TestPortExchangeResolve(t *testing.T) {
	n := neko.Modern(t)

	n.It("blocks Exchange until Resolve replies", func(t *testing.T) {
		delivered := make(chan Report, 1)
		p := NewPort(func(r Report) { delivered <- r })

		result := make(chan ResumeDisposition, 1)
		go func() {
			result <- p.Exchange(Report{Type: TypePageFault, ThreadID: 7})
		}()

		r := <-delivered
		require.Equal(t, uint64(7), r.ThreadID)

		st := p.Resolve(7, Resume)
		require.True(t, st.Ok())

		require.Equal(t, Resume, <-result)
	})

	n.It("reports NOT_FOUND resolving a thread with no pending exchange", func(t *testing.T) {
		p := NewPort(func(Report) {})
		st := p.Resolve(99, Resume)
		require.Equal(t, status.ErrNotFound, st)
	})

	n.It("returns NOT_HANDLED immediately for an unbound port", func(t *testing.T) {
		p := NewPort(func(Report) {})
		p.Unbind()

		d := p.Exchange(Report{ThreadID: 1})
		require.Equal(t, NotHandled, d)
	})

	n.It("resolves every pending exchange as NOT_HANDLED when unbound", func(t *testing.T) {
		p := NewPort(func(Report) {})

		result := make(chan ResumeDisposition, 1)
		go func() {
			result <- p.Exchange(Report{ThreadID: 3})
		}()

		time.Sleep(10 * time.Millisecond)
		p.Unbind()

		require.Equal(t, NotHandled, <-result)
	})

	n.Meow()
}

func TestTableDispatchEscalation(t *testing.T) {
	n := neko.Modern(t)

	n.It("stops at the first port that resumes", func(t *testing.T) {
		tbl := NewTable()

		threadPort := NewPort(func(r Report) {
			go tbl.thread[1].Resolve(r.ThreadID, Resume)
		})
		tbl.BindThread(1, threadPort)

		processPort := NewPort(func(r Report) {
			t.Fatal("process port should never see a report the thread port resumed")
		})
		tbl.BindProcess(1, processPort)

		disposition, processed := tbl.Dispatch(Report{ThreadID: 1, ProcessID: 1})
		require.True(t, processed)
		require.Equal(t, Resume, disposition)
	})

	n.It("falls through to the process port when the thread port declines", func(t *testing.T) {
		tbl := NewTable()

		threadPort := NewPort(func(r Report) {
			go tbl.thread[1].Resolve(r.ThreadID, ResumeTryNext)
		})
		tbl.BindThread(1, threadPort)

		processPort := NewPort(func(r Report) {
			go tbl.process[1].Resolve(r.ThreadID, Resume)
		})
		tbl.BindProcess(1, processPort)

		disposition, processed := tbl.Dispatch(Report{ThreadID: 1, ProcessID: 1})
		require.True(t, processed)
		require.Equal(t, Resume, disposition)
	})

	n.It("reports NOT_HANDLED and unprocessed when nothing is bound", func(t *testing.T) {
		tbl := NewTable()
		disposition, processed := tbl.Dispatch(Report{ThreadID: 42, ProcessID: 42})
		require.Equal(t, NotHandled, disposition)
		require.False(t, processed)
	})

	n.Meow()
}
