package escrow

import "fmt"

// Custodian moves funds between external balances and escrow custody.
type Custodian interface {
	// Draw moves amount from the account's external balance into custody.
	Draw(from string, amount Amount) error
	// Transfer pays amount out of custody to the account.
	Transfer(to string, amount Amount) error
}

// Wallets is an in-memory Custodian holding external balances per account.
type Wallets struct {
	balances map[string]Amount
	custody  Amount
}

func NewWallets() *Wallets {
	return &Wallets{balances: make(map[string]Amount)}
}

func (w *Wallets) Deposit(account string, amount Amount) error {
	if account == "" || amount == 0 {
		return ErrInvalidAmount
	}
	next, err := w.balances[account].Add(amount)
	if err != nil {
		return err
	}
	w.balances[account] = next
	return nil
}

func (w *Wallets) Withdraw(account string, amount Amount) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	bal := w.balances[account]
	if bal < amount {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, account, bal, amount)
	}
	w.balances[account] = bal - amount
	return nil
}

func (w *Wallets) Balance(account string) Amount {
	return w.balances[account]
}

// Custody is the total currently held on behalf of all escrow ledgers.
func (w *Wallets) Custody() Amount {
	return w.custody
}

// Accounts lists every account with a non-zero balance.
func (w *Wallets) Accounts() map[string]Amount {
	out := make(map[string]Amount, len(w.balances))
	for k, v := range w.balances {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

func (w *Wallets) Draw(from string, amount Amount) error {
	custody, err := w.custody.Add(amount)
	if err != nil {
		return err
	}
	if err := w.Withdraw(from, amount); err != nil {
		return err
	}
	w.custody = custody
	return nil
}

func (w *Wallets) Transfer(to string, amount Amount) error {
	if w.custody < amount {
		return fmt.Errorf("%w: custody holds %s, needs %s", ErrInsufficientFunds, w.custody, amount)
	}
	next, err := w.balances[to].Add(amount)
	if err != nil {
		return err
	}
	w.custody -= amount
	w.balances[to] = next
	return nil
}
