package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace: "~/.tradebot/workspace",
			LogLevel:  "info",
			LogFile:   "~/.tradebot/activity.log",
		},
		Inbox: InboxConfig{
			MainURL:                 "https://onetalk.alibaba.com/message/weblitePWA.htm?isGray=1&from=menu&hideMenu=1#/",
			BaseURL:                 "https://alibaba.com/",
			PollMinSeconds:          10,
			PollMaxSeconds:          15,
			RefreshMinSeconds:       25,
			RefreshMaxSeconds:       30,
			IdleCyclesBeforeRefresh: 7,
			StaleLabelSeconds:       180,
		},
		Browser: BrowserConfig{
			Headless:      true,
			ProfileDir:    "~/.tradebot/chrome-profile",
			CookiesFile:   "~/.tradebot/cookies.json",
			LaunchRetries: 3,
			LoginRetries:  2,
		},
		Reply: ReplyConfig{
			AnswerServiceURL: "${TRADEBOT_ANSWER_URL:-http://localhost:8800/search-embed}",
			TimeoutSeconds:   10,
			UseAssistantUI:   false,
		},
		Session: SessionConfig{
			HealthCheckMinutes:   5,
			MaxRecoveryAttempts:  3,
			MaxConsecutiveErrors: 5,
		},
		Capture: CaptureConfig{
			Enabled:        false,
			TimeoutSeconds: 10,
			LedgerPath:     "~/.tradebot/inquiries.db",
			FollowUpDays:   3,
		},
		Notify: NotifyConfig{
			Enabled: false,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Host:     "127.0.0.1",
			Port:     9091,
			Endpoint: "/metrics",
		},
		Selectors: DefaultSelectors(),
	}
}

// DefaultSelectors returns the lookup keys for the current messenger UI.
// These are the only place presentation knowledge lives.
func DefaultSelectors() SelectorsConfig {
	return SelectorsConfig{
		UnreadBadge:      ".unread-num",
		BadgeAncestors:   2,
		ContactTime:      ".contact-time",
		LabelTag:         ".tag-item",
		RecipientAttr:    "data-name",
		DialogClose:      ".im-next-dialog-close",
		LatestMessage:    "div.scroll-box > *",
		TypeInfoAttr:     "data-expinfo",
		RichContent:      ".session-rich-content",
		MessageImage:     "div[view-name='ImageView'] img, div img",
		Description:      ".description-container",
		DescriptionImage: "p img",
		FileCard:         "div[data-exp='card-file']",
		FileCardAttr:     "data-query",
		SendBox:          ".send-textarea",
		SendButton:       "button.send-tool-button",
		AssistantEntry:   "#assistant-entry-icon",
		AssistantUse:     "button.assistant-use-button",
		AssistantDraft:   "#send-box-wrapper pre",
		InquirySummary: []string{
			".session-summary",
			".conversation-summary",
			".last-message-summary",
		},
		InquiryKeywords: []string{
			"inquiry", "quotation", "rfq", "product", "price", "moq",
		},
		BuyerStats: []StatSelector{
			{Name: "profile_views", Selector: ".buyer-stat-profile-views"},
			{Name: "inquiry_count", Selector: ".buyer-stat-inquiries"},
			{Name: "rfq_count", Selector: ".buyer-stat-rfq"},
			{Name: "login_days", Selector: ".buyer-stat-login-days"},
			{Name: "spam_count", Selector: ".buyer-stat-spam"},
			{Name: "blacklist_count", Selector: ".buyer-stat-blacklist"},
		},
	}
}
