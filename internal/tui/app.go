package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/lawdesk/internal/store"
	"github.com/matheus3301/lawdesk/internal/tui/keys"
	"github.com/matheus3301/lawdesk/internal/tui/model"
	"github.com/matheus3301/lawdesk/internal/tui/ui"
	"github.com/matheus3301/lawdesk/internal/tui/views"
)

// Page names.
const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageSearch        = "search"
)

const refreshInterval = 5 * time.Second

// App is a read-only browser over the conversations a caller can see.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	registry  *keys.Registry
	statusBar *views.StatusBar
	convList  *views.ConversationList
	thread    *views.MessageThread
	searchV   *views.SearchView
	filter    *tview.InputField
	listPage  *tview.Flex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the browser for caller.
func NewApp(b model.Backend, callerID, callerRole string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	vm := model.NewViewModel(b, callerID, callerRole)

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        vm,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(theme, callerID+" ("+callerRole+")"),
		convList:  views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme),
		filter:    tview.NewInputField().SetLabel(" Filter: ").SetFieldWidth(0),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.searchV = views.NewSearchView(theme, a.conversationName)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 's',
		Description: "s:search", Visible: true,
		Handler: a.showSearch,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyCtrlR,
		Description: "^r:reload", Visible: true,
		Handler: func() { go a.reload() },
	})

	a.registry.AddPage(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: '/',
		Description: "/:filter", Visible: true,
		Handler: a.showFilter,
	})
	a.registry.AddPage(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'a',
		Description: "a:archive", Visible: true,
		Handler: a.toggleArchived,
	})
	a.registry.AddPage(pageConversations, &keys.Action{
		Key: tcell.KeyRune, Rune: 'A',
		Description: "A:show archived", Visible: true,
		Handler: a.toggleShowArchived,
	})
	a.registry.AddPage(pageThread, &keys.Action{
		Key: tcell.KeyEscape,
		Description: "esc:back", Visible: true,
		Handler: a.showConversations,
	})
	a.registry.AddPage(pageSearch, &keys.Action{
		Key: tcell.KeyEscape,
		Description: "esc:back", Visible: true,
		Handler: a.showConversations,
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(int, int) {
		if c, ok := a.convList.Selected(); ok {
			a.open(c.ID)
		}
	})

	a.filter.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			a.convList.SetFilter(a.filter.GetText())
		case tcell.KeyEscape:
			a.filter.SetText("")
			a.convList.SetFilter("")
		}
		a.listPage.ResizeItem(a.filter, 0, 0)
		a.app.SetFocus(a.convList)
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			if err := a.vm.Search(a.ctx, query); err != nil {
				a.vm.Flash.Error("Search", err)
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(a.vm.Results())
				a.app.SetFocus(a.searchV.Results())
				a.statusBar.SetFlash(a.vm.Flash.Get())
			})
		}()
	})
	a.searchV.SetOnSelect(func(m store.Message) {
		a.open(m.ConversationID)
	})
}

func (a *App) setupLayout() {
	a.listPage = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.convList, 0, 1, true).
		AddItem(a.filter, 0, 0, false)

	a.pages.AddPage(pageConversations, a.listPage, true, true)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageSearch, a.searchV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(root, true)
	a.statusBar.SetHints(a.registry.Hints(pageConversations))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			if event.Key() == tcell.KeyEscape && a.currentPage() == pageSearch {
				a.showConversations()
				return nil
			}
			return event
		}
		if a.registry.HandleEvent(a.currentPage(), event) {
			return nil
		}
		return event
	})
}

func (a *App) currentPage() string {
	name, _ := a.pages.GetFrontPage()
	return name
}

func (a *App) switchTo(page string, focus tview.Primitive) {
	a.pages.SwitchToPage(page)
	a.app.SetFocus(focus)
	a.statusBar.SetHints(a.registry.Hints(page))
}

func (a *App) showConversations() {
	a.convList.Update(a.vm.Conversations())
	a.switchTo(pageConversations, a.convList)
}

func (a *App) showSearch() {
	a.switchTo(pageSearch, a.searchV.Input())
}

func (a *App) showFilter() {
	a.filter.SetText(a.convList.Filter())
	a.listPage.ResizeItem(a.filter, 1, 0)
	a.app.SetFocus(a.filter)
}

func (a *App) open(conversationID string) {
	go func() {
		if err := a.vm.Open(a.ctx, conversationID); err != nil {
			a.vm.Flash.Error("Load", err)
			a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.vm.Flash.Get()) })
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetConversation(a.conversationName(conversationID))
			a.thread.Update(a.vm.Messages())
			a.switchTo(pageThread, a.thread)
		})
	}()
}

func (a *App) toggleArchived() {
	c, ok := a.convList.Selected()
	if !ok {
		return
	}
	go func() {
		if err := a.vm.ToggleArchived(a.ctx, c.ID); err != nil {
			a.vm.Flash.Error("Archive", err)
		}
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.vm.Conversations())
			a.statusBar.SetFlash(a.vm.Flash.Get())
		})
	}()
}

func (a *App) toggleShowArchived() {
	a.vm.SetShowArchived(!a.vm.ShowArchived())
	go a.reload()
}

func (a *App) conversationName(id string) string {
	if c, ok := a.vm.Conversation(id); ok {
		return model.DisplayName(c)
	}
	return id
}

// reload fetches status, the conversation list and the open thread.
func (a *App) reload() {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.vm.Flash.Error("Status", err)
	}
	if err := a.vm.LoadConversations(a.ctx); err != nil {
		a.vm.Flash.Error("Conversations", err)
	}
	if active := a.vm.Active(); active != "" {
		if err := a.vm.Open(a.ctx, active); err != nil {
			a.vm.Flash.Error("Load", err)
		}
	}
	a.app.QueueUpdateDraw(func() {
		switch a.currentPage() {
		case pageConversations:
			a.convList.Update(a.vm.Conversations())
		case pageThread:
			a.thread.Update(a.vm.Messages())
		}
		a.statusBar.SetStatus(a.vm.Status())
		a.statusBar.SetFlash(a.vm.Flash.Get())
	})
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.reload()
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the browser and blocks until it exits.
func (a *App) Run() error {
	go func() {
		a.reload()
		a.refreshLoop()
	}()
	return a.app.Run()
}

// Stop shuts the browser down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
