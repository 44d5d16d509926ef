package deck

import (
	"webdeck/internal/layout"
	"webdeck/internal/registry"
)

// DefaultDocument is the deck used when no configuration can be loaded.
func DefaultDocument() Document {
	buttons := []registry.Button{
		{ID: "btn_notepad", Name: "Notepad", ActionType: "launch_app", ActionParam: "notepad.exe", IconPath: "assets/icons/puppy.gif"},
		{ID: "btn_calc", Name: "Calculator", ActionType: "launch_app", ActionParam: "calc.exe", IconPath: "assets/icons/calculator.204x256.png"},
		{ID: "btn_bilibili", Name: "Bilibili", ActionType: "open_url", ActionParam: "https://www.bilibili.com", IconPath: "assets/icons/bilibili_round-384x384.png"},
		{ID: "BTN_ADD", Name: "Volume Up", ActionType: "media_volume_up", IconPath: "assets/icons/volume-up.256x232.png"},
		{ID: "btn", Name: "Mute", ActionType: "media_mute", IconPath: "assets/icons/volume-down.256x232.png"},
		{ID: "btn_wechat", Name: "WeChat", ActionType: "launch_app", ActionParam: "WeChat.exe", IconPath: "assets/icons/wechat.256x256.png"},
		{ID: "btn_qq", Name: "QQ", ActionType: "launch_app", ActionParam: "QQ.exe", IconPath: "assets/icons/qq.216x256.png"},
		{ID: "btn_copy", Name: "Copy", ActionType: "hotkey", ActionParam: "CTRL+C", IconPath: "assets/icons/copy.256x256.png"},
		{ID: "btn_paste", Name: "Paste", ActionType: "hotkey", ActionParam: "CTRL+V", IconPath: "assets/icons/content-paste.210x256.png"},
		{ID: "btn_lock_screen", Name: "Lock Screen", ActionType: "hotkey", ActionParam: "WIN+L", IconPath: "assets/icons/gnome-lockscreen.256x253.png"},
		{ID: "btn_task_manager", Name: "Task Manager", ActionType: "hotkey", ActionParam: "CTRL+SHIFT+ESC", IconPath: "assets/icons/task_manager.png"},
		{ID: "btn_play_pause", Name: "Play/Pause", ActionType: "media_play_pause"},
		{ID: "btn_gong", Name: "Gong", ActionType: "play_sound", ActionParam: "gong"},
	}

	g := layout.NewGrid(layout.DefaultPageCount, layout.DefaultRows, layout.DefaultCols)
	first := [][]string{
		{"btn_notepad", "btn_calc", "btn_bilibili", "btn_wechat", "btn_qq"},
		{"btn_copy", "btn_paste", "btn_lock_screen", "BTN_ADD", "btn"},
		{"", "", "btn_task_manager", "", ""},
	}
	for r, row := range first {
		copy(g.Pages[0][r], row)
	}
	return Document{Buttons: buttons, Layout: g}
}
