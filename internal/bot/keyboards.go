package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Buy", "trade_token_sell"),
			tgbotapi.NewInlineKeyboardButtonData("Sell", "trade_token_buy"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Positions", "my_position"),
			tgbotapi.NewInlineKeyboardButtonData("Deposit", "deposit_eth"),
			tgbotapi.NewInlineKeyboardButtonData("Withdraw", "withdraw_eth"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Balance", "check_balance"),
			tgbotapi.NewInlineKeyboardButtonData("Export", "export_key"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Referral", "referral"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Trade", "trade"),
		),
	)
}

// amountKeyboard offers percent-of-balance amounts, fixed native amounts when
// the sell leg is ETH, free-entry buttons, and slippage presets.
func amountKeyboard(sellSymbol string, nativeSell bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩️ Back", "trade_no"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("25%% %s", sellSymbol), "25_amount"),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("50%% %s", sellSymbol), "50_amount"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("75%% %s", sellSymbol), "75_amount"),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("100%% %s", sellSymbol), "100_amount"),
		),
	}
	if nativeSell {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("0.05 %s", sellSymbol), "0.05_amount"),
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("0.1 %s", sellSymbol), "0.1_amount"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("0.3 %s", sellSymbol), "0.3_amount"),
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("0.5 %s", sellSymbol), "0.5_amount"),
			),
		)
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("X Slippage ✏️", "x_slippage"),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Amount X %s ✏️", sellSymbol), "x_amount"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ 5% Slippage", "5_slippage"),
			tgbotapi.NewInlineKeyboardButtonData("2% Slippage", "2_slippage"),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes", "trade_yes"),
			tgbotapi.NewInlineKeyboardButtonData("No", "trade_no"),
		),
	)
}

func retryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Retry", "trade_token_amount_click"),
		),
	)
}
